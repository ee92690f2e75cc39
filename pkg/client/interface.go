// Package client defines the vision model backends used for pre-annotation
// and the parsing of their answers.
package client

import (
	"context"

	"github.com/menta2k/cvatkit/pkg/types"
)

// VisionClient is implemented by every vision model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Detect(ctx context.Context, model, prompt, imgB64 string) (*types.DetectionResult, error)
}
