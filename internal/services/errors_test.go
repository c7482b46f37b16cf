package services_test

import (
	"errors"
	"strings"
	"testing"

	"framectl/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "frames", "decode", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"frames", "decode", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	configErr := services.Wrap(services.ErrConfiguration, "sources", "assign", "no input", nil)
	if status := services.FailureStatus(configErr); status != services.StatusRejected {
		t.Fatalf("expected rejected for configuration error, got %s", status)
	}

	toolErr := services.Wrap(services.ErrExternalTool, "frames", "decode", "failed", errors.New("exit 1"))
	if status := services.FailureStatus(toolErr); status != services.StatusFailed {
		t.Fatalf("expected failed for tool error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != services.StatusCompleted {
		t.Fatalf("expected completed for nil error, got %s", status)
	}
}
