package vision

import (
	"context"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

// MockProvider returns a canned response without calling any external
// service. Used in tests and for offline runs.
type MockProvider struct {
	Response string
	Err      error
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Analyze(_ context.Context, _ []byte) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	if p.Response != "" {
		return p.Response, nil
	}
	return `{"detections": [], "unknownSpecies": []}`, nil
}

// NewProvider selects the configured vision backend.
func NewProvider(settings *conf.Settings) (Provider, error) {
	switch settings.Vision.Provider {
	case "", "anthropic":
		return NewAnthropicProvider(&settings.Vision)
	case "mock":
		return &MockProvider{}, nil
	default:
		return nil, errors.Newf("unknown vision provider: %s", settings.Vision.Provider).
			Component("vision").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
