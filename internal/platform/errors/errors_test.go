package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindUpload, "storage.upload", "upload failed",
				errors.New("connection reset")),
			contains: []string{"[upload:storage.upload]", "upload failed", "connection reset"},
		},
		{
			name:     "error without cause",
			err:      New(KindInput, "acquisition.ingest", "no image files selected"),
			contains: []string{"[input:acquisition.ingest]", "no image files selected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindAnalysisTransport, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsInnerKind(t *testing.T) {
	inner := New(KindAnalysisApplication, "function.invoke", "model refused")
	outer := Wrap(KindAnalysisTransport, "pipeline", "invoke failed", fmt.Errorf("call: %w", inner))

	if !IsKind(outer, KindAnalysisApplication) {
		t.Errorf("KindOf() = %s, expected %s", KindOf(outer), KindAnalysisApplication)
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(KindUpload, "op", "msg", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindUpload, "test", "message"),
			kind:     KindUpload,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindExport, "test", "message", errors.New("cause"))),
			kind:     KindExport,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindInput,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected bool
	}{
		{KindUpload, true},
		{KindAnalysisTransport, true},
		{KindAnalysisApplication, true},
		{KindExport, false},
		{KindInput, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := Retriable(New(tt.kind, "op", "msg")); got != tt.expected {
				t.Errorf("Retriable(%s) = %v, expected %v", tt.kind, got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	app := New(KindAnalysisApplication, "function.invoke", "Image too dark to analyse")
	if got := UserMessage(app); got != "Image too dark to analyse" {
		t.Errorf("UserMessage() = %q", got)
	}

	transport := Wrap(KindAnalysisTransport, "function.invoke", "analysis service unreachable", errors.New("dial tcp: refused"))
	if got := UserMessage(transport); got != "analysis service unreachable: dial tcp: refused" {
		t.Errorf("UserMessage() = %q", got)
	}
}
