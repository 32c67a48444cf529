package scanning

import "context"

// DefaultMediaType is assumed when an upload does not state its media type
const DefaultMediaType = "image/jpeg"

// Scanner defines the interface for receipt extraction through a multimodal model
type Scanner interface {
	// Extract sends one image to the model and returns its decoded JSON answer.
	// The answer is untrusted and may have any shape.
	Extract(ctx context.Context, imageData []byte, mediaType string) (any, error)
	// Model returns the model identifier in use
	Model() string
	// Close closes the scanner and releases resources
	Close() error
}
