package port

import (
	"context"

	"planbid/internal/domain"
)

// VisionInput is the shared request sent to every vision backend.
type VisionInput struct {
	Images       []domain.PageImage
	SystemPrompt string
	UserPrompt   string
}

// VisionOutput is the raw text a vision backend answered with.
type VisionOutput struct {
	Text  string
	Model string
}

// VisionAnalyzer sends plan page images and a prompt to one AI vision backend.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, input VisionInput) (*VisionOutput, error)
}
