// ABOUTME: Collaborator interfaces for the generative-AI services behind the console.
// ABOUTME: Defines the scan and writing-assistant contracts consumed by the content views.

package providers

import (
	"context"

	"github.com/jfeddern/OpsDeck/internal/types"
)

// Scanner abstracts the remote vulnerability scan (Gemini, Bedrock, mock).
// A returned error means no findings were produced; callers must not treat it as a clean scan.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, code string) ([]types.Finding, error)
}

// Assistant abstracts the remote writing assistant.
// A returned error means the result is absent and the caller keeps its text.
type Assistant interface {
	Name() string
	Improve(ctx context.Context, text string) (string, error)
}
