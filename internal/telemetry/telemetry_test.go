package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

func TestInitDisabledIsNoop(t *testing.T) {
	settings := &conf.Settings{}
	assert.NoError(t, Init(settings))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitEnabledRequiresDSN(t *testing.T) {
	settings := &conf.Settings{}
	settings.Integrations.Telemetry.Enabled = true
	err := Init(settings)
	assert.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFlushWithoutReporter(t *testing.T) {
	// Must not panic when telemetry was never initialized.
	Flush()
}
