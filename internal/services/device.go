package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

type RegisterDeviceInput struct {
	Identifier string
	Name       string
	Purok      string
	Latitude   float64
	Longitude  float64
}

// RegisteredDevice carries the plaintext API key exactly once, at
// registration. Only the bcrypt hash is stored.
type RegisteredDevice struct {
	*types.Device
	APIKey string `json:"api_key"`
}

type DeviceService interface {
	Register(ctx context.Context, in RegisterDeviceInput) (*RegisteredDevice, error)
	List(ctx context.Context) ([]*types.Device, error)
	SetActive(ctx context.Context, deviceID uuid.UUID, active bool) error
}

type deviceService struct {
	log     *logger.Logger
	devices repos.DeviceRepo
}

func NewDeviceService(log *logger.Logger, devices repos.DeviceRepo) DeviceService {
	return &deviceService{
		log:     log.With("service", "DeviceService"),
		devices: devices,
	}
}

func (dv *deviceService) Register(ctx context.Context, in RegisterDeviceInput) (*RegisteredDevice, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		return nil, apierr.Validation(errors.New("device identifier is required"))
	}
	if _, err := dv.devices.GetByIdentifier(ctx, nil, identifier); err == nil {
		return nil, apierr.DomainState("A device with this identifier is already registered.")
	} else if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	apiKey := hex.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	device := &types.Device{
		ID:         uuid.New(),
		Identifier: identifier,
		Name:       strings.TrimSpace(in.Name),
		APIKeyHash: string(hash),
		Purok:      strings.TrimSpace(in.Purok),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Active:     true,
	}
	created, err := dv.devices.Create(ctx, nil, []*types.Device{device})
	if err != nil {
		return nil, err
	}
	return &RegisteredDevice{Device: created[0], APIKey: apiKey}, nil
}

func (dv *deviceService) List(ctx context.Context) ([]*types.Device, error) {
	return dv.devices.List(ctx, nil, false)
}

func (dv *deviceService) SetActive(ctx context.Context, deviceID uuid.UUID, active bool) error {
	err := dv.devices.SetActive(ctx, nil, deviceID, active)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return apierr.NotFound("Device not found.")
	}
	return err
}
