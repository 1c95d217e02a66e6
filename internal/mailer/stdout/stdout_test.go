package stdout

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestSend_PrintsEnvelopeAndRawMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewWithWriter(&buf)

	raw := []byte("From: Alice <noreply@y.com>\r\n\r\nBody")
	err := s.Send(context.Background(), "noreply@y.com", []string{"owner@gmail.com", "second@gmail.com"}, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "Envelope source: noreply@y.com") {
		t.Error("output missing envelope source")
	}
	if !strings.Contains(output, "Envelope destinations: owner@gmail.com, second@gmail.com") {
		t.Error("output missing envelope destinations")
	}
	if !strings.Contains(output, "From: Alice <noreply@y.com>") {
		t.Error("output missing raw message")
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := New().Name(); got != "stdout" {
		t.Errorf("Name: got %q, want %q", got, "stdout")
	}
}
