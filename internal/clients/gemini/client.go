package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/urbanwatch/urbanwatch-backend/internal/domain/incident"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/ctxutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/envutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

// Verifier judges raw CCTV detections and classifies citizen concerns.
type Verifier interface {
	VerifyDetection(ctx context.Context, req VerifyRequest) (*Verdict, error)
	ClassifyConcern(ctx context.Context, title, description string) (*Classification, error)
	Close() error
}

// VerifyRequest carries everything the model sees about one detection.
type VerifyRequest struct {
	Snapshot        []byte
	SnapshotMime    string
	DetectedObjects []string
	YOLOConfidence  float64
	DeviceName      string
	Purok           string
}

// Verdict is the model's judgement of a detection. Confidence is the model's
// own estimate, not the upstream YOLO score.
type Verdict struct {
	IsRealIncident bool    `json:"is_real_incident"`
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// Classification is the model's category/severity call for a citizen concern.
type Classification struct {
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type geminiService struct {
	log        *logger.Logger
	client     *genai.Client
	model      string
	maxRetries int
}

func New(log *logger.Logger) (Verifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	glog := log.With("client", "gemini.Verifier")

	apiKey := envutil.String("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	model := envutil.String("GEMINI_MODEL", "gemini-2.0-flash")

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	return &geminiService{
		log:        glog,
		client:     client,
		model:      model,
		maxRetries: 3,
	}, nil
}

func (g *geminiService) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return nil
}

const verifyPromptTemplate = `You are reviewing a CCTV detection from a municipal camera network.

Camera: %s (purok %s)
Detector output: objects=%s detector_confidence=%.2f

Decide whether the attached frame shows a real incident that municipal
responders should act on, or a false alarm. Respond with JSON only:

{"is_real_incident": bool, "category": one of ["fire","flood","accident","crime","infrastructure","other"], "severity": one of ["low","medium","high"], "confidence": 0.0-1.0, "reasoning": "one or two sentences"}`

func (g *geminiService) VerifyDetection(ctx context.Context, req VerifyRequest) (*Verdict, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if len(req.Snapshot) == 0 {
		return nil, fmt.Errorf("snapshot required")
	}
	mime := req.SnapshotMime
	if mime == "" {
		mime = "image/jpeg"
	}

	prompt := fmt.Sprintf(verifyPromptTemplate,
		req.DeviceName,
		req.Purok,
		strings.Join(req.DetectedObjects, ","),
		req.YOLOConfidence,
	)

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(req.Snapshot, mime),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	raw, err := g.generate(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("gemini verify detection: %w", err)
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		return nil, fmt.Errorf("gemini verify detection: %w", err)
	}
	return verdict, nil
}

const classifyPromptTemplate = `A citizen filed a report with a municipal incident platform.

Title: %s
Description: %s

Classify it. Respond with JSON only:

{"category": one of ["fire","flood","accident","crime","infrastructure","other"], "severity": one of ["low","medium","high"], "confidence": 0.0-1.0, "reasoning": "one sentence"}`

func (g *geminiService) ClassifyConcern(ctx context.Context, title, description string) (*Classification, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(classifyPromptTemplate, title, description)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	raw, err := g.generate(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("gemini classify concern: %w", err)
	}

	cls, err := ParseClassification(raw)
	if err != nil {
		return nil, fmt.Errorf("gemini classify concern: %w", err)
	}
	return cls, nil
}

func (g *geminiService) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
		if err == nil {
			text := resp.Text()
			if strings.TrimSpace(text) == "" {
				return "", fmt.Errorf("empty model response")
			}
			return text, nil
		}
		last = err

		if !isRetryable(err) || attempt == g.maxRetries {
			break
		}
		g.log.Warn("gemini call failed, retrying", "attempt", attempt+1, "error", err.Error())
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 8*time.Second {
			backoff = 8 * time.Second
		}
	}
	return "", last
}

func isRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	// Transport-level failures have no status code; give them one more shot.
	return true
}

// ParseVerdict decodes a model reply into a Verdict, tolerating code fences
// and normalizing the category and severity vocabulary.
func ParseVerdict(raw string) (*Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &v); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	v.Category = normalizeCategory(v.Category)
	v.Severity = normalizeSeverity(v.Severity)
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return nil, fmt.Errorf("verdict missing reasoning")
	}
	return &v, nil
}

func ParseClassification(raw string) (*Classification, error) {
	var c Classification
	if err := json.Unmarshal([]byte(stripFences(raw)), &c); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	c.Category = normalizeCategory(c.Category)
	c.Severity = normalizeSeverity(c.Severity)
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return &c, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if incident.ValidCategory(c) {
		return c
	}
	return incident.CategoryOther
}

func normalizeSeverity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if incident.ValidSeverity(s) {
		return s
	}
	return incident.SeverityLow
}
