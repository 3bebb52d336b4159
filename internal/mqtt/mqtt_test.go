package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/geometry"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

func TestNewPublisherRequiresBroker(t *testing.T) {
	t.Parallel()
	_, err := NewPublisher(&conf.MQTTSettings{}, nil)
	assert.Error(t, err)
}

func TestNewPublisherDefaultTopic(t *testing.T) {
	t.Parallel()
	p, err := NewPublisher(&conf.MQTTSettings{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultTopic, p.topic)

	p, err = NewPublisher(&conf.MQTTSettings{Broker: "tcp://localhost:1883", Topic: "dive/events"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "dive/events", p.topic)
}

func TestAnalysisEventPayload(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	result := &pipeline.ImageResult{
		Filename:     "reef.jpg",
		Success:      true,
		PhotoURL:     "https://cdn.example.org/photos/reef.jpg",
		AnnotatedURL: "https://cdn.example.org/photos/reef_annotated.jpg",
		SightingIDs:  []uint{7},
		Detections: []vision.Detection{
			{
				Species:        "Clownfish",
				ScientificName: "Amphiprion ocellaris",
				Confidence:     0.93,
				Instances: []vision.Instance{
					{Box: geometry.FullFrame(), Confidence: 0.93},
					{Box: geometry.FullFrame(), Confidence: 0.88},
				},
			},
		},
		UnknownSpecies: []vision.UnknownSpecies{{Description: "translucent shrimp"}},
	}

	payload, err := json.Marshal(newAnalysisEvent("device-1", result, now))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "device-1", decoded["deviceId"])
	assert.Equal(t, "2025-06-15T10:30:00Z", decoded["timestamp"])
	assert.Equal(t, "https://cdn.example.org/photos/reef.jpg", decoded["photoUrl"])
	assert.Equal(t, float64(1), decoded["unknownSpecies"])

	detections, ok := decoded["detections"].([]any)
	require.True(t, ok)
	require.Len(t, detections, 1)
	det := detections[0].(map[string]any)
	assert.Equal(t, "Clownfish", det["species"])
	assert.Equal(t, "Amphiprion ocellaris", det["scientificName"])
	assert.InDelta(t, 0.93, det["confidence"], 1e-9)
	assert.Equal(t, float64(2), det["instances"])
}

func TestAnalysisEventEmptyDetections(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(newAnalysisEvent("device-2", &pipeline.ImageResult{}, time.Now()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	detections, ok := decoded["detections"].([]any)
	require.True(t, ok, "detections should serialize as an array even when empty")
	assert.Empty(t, detections)
	assert.NotContains(t, decoded, "sightingIds")
}
