package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Vision.Provider = "mock"
	return settings
}

func TestServiceAnalyzeSuccess(t *testing.T) {
	t.Parallel()

	provider := &MockProvider{
		Response: `Here is what I found: {"detections":[{"species":"Lionfish","scientificName":"Pterois volitans","confidence":0.88}]}`,
	}
	svc := NewService(provider, testSettings(), nil)

	analysis, err := svc.Analyze(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	require.Len(t, analysis.Detections, 1)
	assert.Equal(t, "Lionfish", analysis.Detections[0].Species)
}

func TestServiceTransportFailureIsModelUnavailable(t *testing.T) {
	t.Parallel()

	provider := &MockProvider{Err: errors.NewStd("connection refused")}
	svc := NewService(provider, testSettings(), nil)

	_, err := svc.Analyze(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
	assert.True(t, errors.IsModelUnavailable(err))
}

func TestServiceUnparseableResponseIsParseError(t *testing.T) {
	t.Parallel()

	provider := &MockProvider{Response: "sorry, I cannot help with that"}
	svc := NewService(provider, testSettings(), nil)

	_, err := svc.Analyze(context.Background(), []byte("jpeg bytes"))
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestNewProviderSelection(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	p, err := NewProvider(settings)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	settings.Vision.Provider = "anthropic"
	_, err = NewProvider(settings)
	require.Error(t, err, "anthropic provider without API key must fail")

	settings.Vision.APIKey = "test-key"
	p, err = NewProvider(settings)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	settings.Vision.Provider = "nonexistent"
	_, err = NewProvider(settings)
	require.Error(t, err)
}
