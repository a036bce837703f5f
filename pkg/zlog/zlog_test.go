package zlog_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-tracking"
	"github.com/goliatone/go-tracking/pkg/zlog"
	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogTrackingWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zlog.New(zerolog.New(&buf), zlog.WithLevel(zerolog.InfoLevel))

	logger.LogTracking(tracking.TrackingLogEvent{
		Op:       "merge",
		Action:   "MergeOnQuery",
		Key:      tracking.EntityKey{Type: "Order", ID: "7"},
		State:    tracking.EntityStateUnchanged,
		Count:    1,
		Duration: time.Millisecond,
	})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["level"] != "info" || entry["op"] != "merge" || entry["action"] != "MergeOnQuery" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry["entity"] != "Order:7" || entry["state"] != "Unchanged" {
		t.Fatalf("unexpected entity fields %+v", entry)
	}
}

func TestLogEvaluationErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zlog.New(zerolog.New(&buf))

	logger.LogEvaluation(tracking.EvaluatorLogEvent{
		Engine: "expr",
		Expr:   "status == 'open'",
		Entity: tracking.EntityKey{Type: "Order", ID: "1"},
		Err:    errors.New("boom"),
	})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0]["level"] != "error" || lines[0]["error"] != "boom" || lines[0]["engine"] != "expr" {
		t.Fatalf("unexpected entry %+v", lines[0])
	}
}

func TestLoggerRespectsGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := zlog.New(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.LogTracking(tracking.TrackingLogEvent{Op: "attach"})
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered, got %q", buf.String())
	}
}

func TestOptionsWireManagerLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zlog.New(zerolog.New(&buf))
	manager := tracking.NewEntityManager(logger.Options()...)
	manager.Clear()

	if !strings.Contains(buf.String(), `"component":"tracking"`) {
		t.Fatalf("expected manager to log through zerolog, got %q", buf.String())
	}
}
