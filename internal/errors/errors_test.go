package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	// Ensure no telemetry is active
	SetTelemetryReporter(nil)

	// Create an error - should use fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != "unknown" {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestQuotaDetailsRoundTrip(t *testing.T) {
	SetTelemetryReporter(nil)

	err := QuotaExceededError(10, 10)
	if !IsQuotaExceeded(err) {
		t.Fatal("Expected IsQuotaExceeded to be true for a quota error")
	}

	used, limit, ok := QuotaDetails(err)
	if !ok {
		t.Fatal("Expected QuotaDetails to find the usage counts")
	}
	if used != 10 || limit != 10 {
		t.Errorf("Expected used=10 limit=10, got used=%d limit=%d", used, limit)
	}

	// A non-quota error must not report details
	if _, _, ok := QuotaDetails(fmt.Errorf("plain error")); ok {
		t.Error("Expected QuotaDetails to report ok=false for a plain error")
	}
}

func TestCategoryPredicates(t *testing.T) {
	SetTelemetryReporter(nil)

	parseErr := ParseError(fmt.Errorf("no JSON object found in model response"))
	if !IsParseError(parseErr) {
		t.Error("Expected IsParseError to be true for a parse error")
	}
	if IsModelUnavailable(parseErr) {
		t.Error("Expected IsModelUnavailable to be false for a parse error")
	}

	modelErr := ModelUnavailableError("anthropic", fmt.Errorf("connection refused"))
	if !IsModelUnavailable(modelErr) {
		t.Error("Expected IsModelUnavailable to be true for a model transport error")
	}

	annotateErr := New(fmt.Errorf("unsupported image format")).
		Component("annotate").
		Category(CategoryAnnotation).
		Build()
	if !IsAnnotationFailure(annotateErr) {
		t.Error("Expected IsAnnotationFailure to be true for an annotation error")
	}
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	SetTelemetryReporter(nil)

	sentinel := NewStd("underlying failure")
	wrapped := New(fmt.Errorf("operation failed: %w", sentinel)).
		Category(CategoryDatabase).
		Build()

	if !Is(wrapped, sentinel) {
		t.Error("Expected errors.Is to find the wrapped sentinel")
	}

	var ee *EnhancedError
	if !As(wrapped, &ee) {
		t.Fatal("Expected errors.As to extract the EnhancedError")
	}
	if ee.Category != CategoryDatabase {
		t.Errorf("Expected category 'database', got '%s'", ee.Category)
	}
}

func TestRegexPrecompilation(t *testing.T) {
	// Test URL scrubbing
	testMessage1 := "Error at https://api.example.com?api_key=secret123&token=abc"
	scrubbed1 := basicURLScrub(testMessage1)
	expected1 := "Error at https://api.example.com?[REDACTED]"
	if scrubbed1 != expected1 {
		t.Errorf("URL scrubbing failed. Expected: %s, got: %s", expected1, scrubbed1)
	}

	// Test API key scrubbing in non-URL context
	testMessage2 := "Config error: api_key=secret123 is invalid"
	scrubbed2 := basicURLScrub(testMessage2)
	if !strings.Contains(scrubbed2, "[API_KEY_REDACTED]") {
		t.Errorf("API key scrubbing failed. Expected to contain '[API_KEY_REDACTED]', got: %s", scrubbed2)
	}

	// Test device identifier scrubbing
	testMessage3 := "Quota check failed for device_id=abc-123"
	scrubbed3 := basicURLScrub(testMessage3)
	if strings.Contains(scrubbed3, "abc-123") {
		t.Errorf("Device ID scrubbing failed. Sensitive data still present: %s", scrubbed3)
	}
}
