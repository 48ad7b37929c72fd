package client

import (
	"context"

	"github.com/menta2k/cropkit/pkg/types"
)

// VisionClient is a vision model backend able to locate the subject of an
// image. Images are passed base64 encoded.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
