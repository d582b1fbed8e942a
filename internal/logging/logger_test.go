package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWriterRespectsConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{ServiceName: "api", Level: "error", Output: &buf})

	if _, err := io.WriteString(logger.Writer(), "GET /cart 200\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("info writes must be dropped at error level, got %q", buf.String())
	}

	logger.Error(context.Background(), "boom", errors.New("bad"))
	if !strings.Contains(buf.String(), `"message":"boom"`) {
		t.Fatalf("expected error line, got %q", buf.String())
	}
}

func TestWriterLogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{ServiceName: "api", Level: "info", Output: &buf})

	n, err := io.WriteString(logger.Writer(), "GET /cart 200\n")
	if err != nil || n != len("GET /cart 200\n") {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, `"message":"GET /cart 200"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestContextFieldsAndNilLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{ServiceName: "api", Level: "debug", Output: &buf})

	ctx := logger.WithSessionID(context.Background(), "sess-1")
	logger.Info(ctx, "cart loaded")
	if !strings.Contains(buf.String(), `"session_id":"sess-1"`) {
		t.Fatalf("expected session field, got %q", buf.String())
	}

	var nilLogger *Logger
	nilLogger.Info(context.Background(), "dropped")
	if _, err := io.WriteString(nilLogger.Writer(), "dropped"); err != nil {
		t.Fatalf("nil logger writer: %v", err)
	}
}
