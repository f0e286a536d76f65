package connectors

import "context"

// GenerationParams — параметры генерации, которые передаются бэкенду как есть.
type GenerationParams struct {
	MaxOutputTokens int
	Temperature     float64
	TopP            float64
}

// TextGenerator — генеративный бэкенд: промпт на входе, текст на выходе.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
