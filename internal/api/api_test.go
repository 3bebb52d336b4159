package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/annotate"
	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/objectstore"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
	"github.com/Reefey/Backend-sub000/internal/quota"
	"github.com/Reefey/Backend-sub000/internal/reconciler"
	"github.com/Reefey/Backend-sub000/internal/vision"
)

const clownfishResponse = `{"detections":[{"species":"Clownfish","scientificName":"Amphiprion ocellaris","confidence":0.9,"boundingBox":{"x":0.1,"y":0.1,"width":0.3,"height":0.3}}]}`

// scriptedProvider serves canned model responses, or a fixed error.
type scriptedProvider struct {
	response string
	err      error
}

func (p *scriptedProvider) Name() string { return "mock" }

func (p *scriptedProvider) Analyze(context.Context, []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

type testServer struct {
	echo       *echo.Echo
	controller *Controller
	ds         datastore.Interface
	provider   *scriptedProvider
}

func newTestServer(t *testing.T, dailyLimit int, mutate ...func(*conf.Settings)) *testServer {
	t.Helper()

	settings := &conf.Settings{}
	settings.Vision.Provider = "mock"
	settings.Quota.Enabled = true
	settings.Quota.DailyLimit = dailyLimit
	settings.Annotate.Enabled = true
	settings.ObjectStore.Type = "local"
	settings.ObjectStore.Local.Path = t.TempDir()
	settings.ObjectStore.PublicURL = "https://cdn.example.org"
	settings.Reconciler.ConfidenceThreshold = 0.7
	settings.Reconciler.AutoCreate = true
	settings.Reconciler.AutoCreateThreshold = 0.8
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = fmt.Sprintf("file:api_%s?mode=memory&cache=shared", t.Name())
	for _, m := range mutate {
		m(settings)
	}

	db := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, db.Open())
	t.Cleanup(func() { _ = db.Close() })

	objStore, err := objectstore.New(settings, nil)
	require.NoError(t, err)

	provider := &scriptedProvider{response: clownfishResponse}
	visionSvc := vision.NewService(provider, settings, nil)
	engine := reconciler.NewEngine(db, &settings.Reconciler)
	renderer := annotate.NewRenderer(&settings.Annotate, nil)

	// The gate is only wired when quota tracking is enabled, matching the
	// server wiring.
	var gate *quota.Gate
	opts := []pipeline.Option{pipeline.WithRenderer(renderer)}
	if settings.Quota.Enabled {
		gate = quota.NewGate(quota.NewMemoryStore(), &settings.Quota)
		opts = append(opts, pipeline.WithQuotaGate(gate))
	}

	orchestrator := pipeline.New(settings, visionSvc, objStore, engine, opts...)

	e := echo.New()
	controller, err := New(e, db, settings, gate, orchestrator, nil)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	return &testServer{echo: e, controller: controller, ds: db, provider: provider}
}

func (ts *testServer) request(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := range 80 {
		for x := range 100 {
			img.Set(x, y, color.RGBA{R: 10, G: 80, B: 140, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// multipartBody builds a multipart body with a deviceId field and the given
// files under fieldName.
func multipartBody(t *testing.T, deviceID, fieldName string, files ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if deviceID != "" {
		require.NoError(t, w.WriteField("deviceId", deviceID))
	}
	for i, data := range files {
		fw, err := w.CreateFormFile(fieldName, fmt.Sprintf("photo%d.jpg", i))
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)

	rec := ts.request(t, http.MethodGet, "/api/v1/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "connected", resp.DatabaseStatus)
}

func TestAnalyzeImage(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)

	body, contentType := multipartBody(t, "device-1", "image", testJPEG(t))
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeJSON[pipeline.ImageResult](t, rec)
	assert.True(t, result.Success)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, "Clownfish", result.Detections[0].Species)
	assert.Contains(t, result.PhotoURL, "https://cdn.example.org")
}

func TestAnalyzeImageRequiresDeviceID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)

	body, contentType := multipartBody(t, "", "image", testJPEG(t))
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeImageRequiresFile(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)

	body, contentType := multipartBody(t, "device-1", "image")
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1)

	body, contentType := multipartBody(t, "device-q", "image", testJPEG(t))
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	body, contentType = multipartBody(t, "device-q", "image", testJPEG(t))
	rec = ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeJSON[QuotaExceededResponse](t, rec)
	assert.Equal(t, 1, resp.Used)
	assert.Equal(t, 1, resp.Limit)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestAnalyzeParseFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)
	ts.provider.response = "the reef was murky, no structured output"

	body, contentType := multipartBody(t, "device-1", "image", testJPEG(t))
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAnalyzeModelUnavailable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)
	ts.provider.err = fmt.Errorf("connection refused")

	body, contentType := multipartBody(t, "device-1", "image", testJPEG(t))
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyzeBatch(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)

	jpg := testJPEG(t)
	body, contentType := multipartBody(t, "device-b", "images", jpg, jpg, jpg)
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze/batch", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeJSON[pipeline.BatchResult](t, rec)
	assert.Equal(t, 3, result.Summary.TotalImages)
	assert.Equal(t, 3, result.Summary.SuccessfulAnalyses)
}

func TestAnalyzeBatchQuotaPrecheck(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 2)

	jpg := testJPEG(t)
	body, contentType := multipartBody(t, "device-b", "images", jpg, jpg, jpg)
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze/batch", body, contentType)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeJSON[QuotaExceededResponse](t, rec)
	assert.Equal(t, 0, resp.Used)
	assert.Equal(t, 2, resp.Limit)
}

func TestAnalyzeBatchRequiresImages(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 10)

	body, contentType := multipartBody(t, "device-b", "images")
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze/batch", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotaStatusEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 5)

	body, contentType := multipartBody(t, "device-s", "image", testJPEG(t))
	rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/v1/quota/device-s", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := decodeJSON[quota.Status](t, rec)
	assert.Equal(t, 1, status.Used)
	assert.Equal(t, 5, status.Limit)
}

// TestQuotaDisabled verifies that with quota tracking switched off, analyze
// requests pass without any limit, even a zero one, and the quota preview
// endpoint reports the feature as unavailable.
func TestQuotaDisabled(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 0, func(s *conf.Settings) {
		s.Quota.Enabled = false
	})

	for range 2 {
		body, contentType := multipartBody(t, "device-free", "image", testJPEG(t))
		rec := ts.request(t, http.MethodPost, "/api/v1/analyze", body, contentType)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := ts.request(t, http.MethodGet, "/api/v1/quota/device-free", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
