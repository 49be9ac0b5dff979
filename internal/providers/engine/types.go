package engine

import (
	"context"

	"stagesmart/internal/imaging"
)

// Request is the normalized input passed to any generation engine: the photo
// to restage plus the staging instruction.
type Request struct {
	Image     imaging.Payload
	Prompt    string
	RequestID string
}

// Engine is the contract implemented by all generation backends. Generate
// performs network I/O only and must honor ctx cancellation; it never mutates
// shared state.
type Engine interface {
	ID() string
	Generate(ctx context.Context, req Request) (imaging.Payload, error)
}
