package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/splitit/internal/scanning"
)

// IDGenerator generates request IDs used to correlate log lines
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Health describes whether extraction is available
type Health struct {
	OK     bool   `json:"ok"`
	HasSDK bool   `json:"has_sdk"`
	HasKey bool   `json:"has_key"`
	Model  string `json:"model"`
}

// Service turns uploaded images into receipts.
// A nil scanner means extraction is not configured; every parse then fails with
// a ConfigurationError.
type Service struct {
	scanner     scanning.Scanner
	model       string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(scanner scanning.Scanner, model string) *Service {
	return NewServiceWithDeps(scanner, model, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(scanner scanning.Scanner, model string, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		scanner:     scanner,
		model:       model,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Health reports the extraction status
func (s *Service) Health() Health {
	return Health{
		OK:     true,
		HasSDK: true,
		HasKey: s.scanner != nil,
		Model:  s.model,
	}
}

// Ready returns a ConfigurationError when extraction is unavailable
func (s *Service) Ready() error {
	if s.scanner == nil {
		return &ConfigurationError{Msg: missingKeyMessage}
	}
	return nil
}

// ParseImage extracts a receipt from a single image
func (s *Service) ParseImage(ctx context.Context, img Image) (Receipt, error) {
	if err := s.Ready(); err != nil {
		return Receipt{}, err
	}
	if len(img.Data) == 0 {
		return Receipt{}, &InputError{Msg: "Missing image_b64"}
	}

	return s.extract(ctx, s.idGenerator.Generate(), 1, img)
}

// ParseImages extracts every image in order and merges the results.
// Images are processed one at a time; the first failure aborts the request.
func (s *Service) ParseImages(ctx context.Context, imgs []Image) (Receipt, error) {
	if err := s.Ready(); err != nil {
		return Receipt{}, err
	}
	if len(imgs) == 0 {
		return Receipt{}, &InputError{Msg: "No valid images in images[]"}
	}

	requestID := s.idGenerator.Generate()
	receipts := make([]Receipt, 0, len(imgs))
	for i, img := range imgs {
		r, err := s.extract(ctx, requestID, i+1, img)
		if err != nil {
			return Receipt{}, err
		}
		receipts = append(receipts, r)
	}

	slog.Info("Merged receipt images", "request_id", requestID, "images", len(imgs))
	return Merge(receipts), nil
}

// extract reads one upload. Multi-page uploads are merged like multi-image requests.
func (s *Service) extract(ctx context.Context, requestID string, index int, img Image) (Receipt, error) {
	pages, err := scanning.Pages(img.Data, img.MediaType)
	if err != nil {
		if errors.Is(err, scanning.ErrUnsupportedImage) {
			return Receipt{}, &InputError{Msg: err.Error()}
		}
		return Receipt{}, fmt.Errorf("preparing image %d: %w", index, err)
	}

	receipts := make([]Receipt, 0, len(pages))
	for p, page := range pages {
		start := s.timeSource.Now()
		raw, err := s.scanner.Extract(ctx, page.Data, page.MediaType)
		elapsed := s.timeSource.Now().Sub(start)
		if err != nil {
			slog.Error("Failed to extract receipt",
				"request_id", requestID,
				"image", index,
				"page", p+1,
				"media_type", page.MediaType,
				"size", len(page.Data),
				"elapsed", elapsed,
				"error", err,
			)
			return Receipt{}, err
		}

		r := Normalize(raw)
		slog.Info("Extracted receipt",
			"request_id", requestID,
			"image", index,
			"page", p+1,
			"media_type", page.MediaType,
			"size", len(page.Data),
			"items", len(r.Items),
			"elapsed", elapsed,
		)
		receipts = append(receipts, r)
	}

	if len(receipts) == 1 {
		return receipts[0], nil
	}
	return Merge(receipts), nil
}
