package notification

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
)

// webhookRecorder captures bodies posted by the generic shoutrrr service.
type webhookRecorder struct {
	server *httptest.Server

	mu     sync.Mutex
	bodies []string
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	r := &webhookRecorder{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}
		r.mu.Lock()
		r.bodies = append(r.bodies, string(body))
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *webhookRecorder) serviceURL(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(r.server.URL)
	require.NoError(t, err)
	return fmt.Sprintf("generic://%s?disabletls=yes", u.Host)
}

func (r *webhookRecorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.bodies))
	copy(out, r.bodies)
	return out
}

func TestNewNotifierRequiresURLs(t *testing.T) {
	t.Parallel()
	_, err := NewNotifier(&conf.NotificationSettings{})
	assert.Error(t, err)
}

func TestNewNotifierRejectsInvalidURL(t *testing.T) {
	t.Parallel()
	_, err := NewNotifier(&conf.NotificationSettings{URLs: []string{"not-a-service-url"}})
	assert.Error(t, err)
}

func TestSpeciesDiscoveredSendsWebhook(t *testing.T) {
	t.Parallel()
	recorder := newWebhookRecorder(t)

	notifier, err := NewNotifier(&conf.NotificationSettings{
		Enabled: true,
		URLs:    []string{recorder.serviceURL(t)},
	})
	require.NoError(t, err)

	notifier.SpeciesDiscovered("Clownfish", "Amphiprion ocellaris", 0.93)
	notifier.Wait()

	bodies := recorder.received()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "Clownfish")
	assert.Contains(t, bodies[0], "Amphiprion ocellaris")
	assert.Contains(t, bodies[0], "93%")
}

func TestSpeciesDiscoveredWithoutScientificName(t *testing.T) {
	t.Parallel()
	recorder := newWebhookRecorder(t)

	notifier, err := NewNotifier(&conf.NotificationSettings{
		Enabled: true,
		URLs:    []string{recorder.serviceURL(t)},
	})
	require.NoError(t, err)

	notifier.SpeciesDiscovered("Unknown Ray", "", 0.85)
	notifier.Wait()

	bodies := recorder.received()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "Unknown Ray")
	assert.NotContains(t, bodies[0], "()")
}
