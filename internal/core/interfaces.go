// Package core defines the interfaces shared by the narrator services.
package core

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by an ObjectStore when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	// Size returns the stored length of key, or ErrObjectNotFound.
	Size(ctx context.Context, key string) (int64, error)
}

// SynthesisOptions holds the per-request voice settings.
type SynthesisOptions struct {
	Voice string
	// Speed is a multiplier written as "x1.25".
	Speed string
}

// Synthesizer turns one chunk of text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error)
	// Extension is the file extension of the produced audio, without the dot.
	Extension() string
}
