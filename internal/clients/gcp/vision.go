package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/ctxutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

// Vision extracts text from uploaded government ID photos so registration
// details can be checked against the document.
type Vision interface {
	OCRImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionOCRResult, error)
	Close() error
}

type VisionOCRResult struct {
	Provider    string   `json:"provider"`
	MimeType    string   `json:"mime_type,omitempty"`
	PrimaryText string   `json:"primary_text"`
	Confidence  float64  `json:"confidence"`
	Warnings    []string `json:"warnings,omitempty"`
}

// ContainsName reports whether the OCR text plausibly contains the given
// name, token by token. Matching is case-insensitive; every token of the
// name must appear somewhere in the text.
func (r *VisionOCRResult) ContainsName(firstName, lastName string) bool {
	if r == nil {
		return false
	}
	haystack := strings.ToLower(r.PrimaryText)
	for _, token := range strings.Fields(strings.ToLower(firstName + " " + lastName)) {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

type visionService struct {
	log          *logger.Logger
	visionClient *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Vision")

	ctx := context.Background()
	opts := ClientOptionsFromEnv()

	vClient, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &visionService{
		log:          slog,
		visionClient: vClient,
	}, nil
}

func (s *visionService) Close() error {
	if s == nil || s.visionClient == nil {
		return nil
	}
	return s.visionClient.Close()
}

func (s *visionService) OCRImageBytes(ctx context.Context, img []byte, mimeType string) (*VisionOCRResult, error) {
	if len(img) == 0 {
		return &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType, PrimaryText: ""}, nil
	}

	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}

	resp, err := s.visionClient.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType}, nil
	}

	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("vision annotate: %s", r.Error.Message)
	}

	out := &VisionOCRResult{Provider: "gcp_vision", MimeType: mimeType}
	if r.FullTextAnnotation != nil {
		out.PrimaryText = strings.TrimSpace(r.FullTextAnnotation.Text)

		var confSum float64
		var confN int
		for _, page := range r.FullTextAnnotation.Pages {
			if page == nil {
				continue
			}
			if page.Confidence > 0 {
				confSum += float64(page.Confidence)
				confN++
			}
		}
		if confN > 0 {
			out.Confidence = confSum / float64(confN)
		}
	}
	if out.PrimaryText == "" {
		out.Warnings = append(out.Warnings, "no text detected")
	}
	return out, nil
}
