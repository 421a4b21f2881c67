package persist

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestWriter_RunsInOrder(t *testing.T) {
	w := NewWriter(zap.NewNop())
	defer w.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		w.Enqueue("step", func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		})
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("ran %d jobs; want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestWriter_ErrorLogged(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.ErrorLevel,
	)
	w := NewWriter(zap.New(core))

	ran := false
	w.Enqueue("profiles", func(context.Context) error { return errors.New("disk full") })
	w.Enqueue("scalars", func(context.Context) error { ran = true; return nil })
	w.Close()

	if !ran {
		t.Error("write after a failed write did not run")
	}
	out := buf.String()
	if !strings.Contains(out, "failed to persist") || !strings.Contains(out, "disk full") {
		t.Errorf("expected error log, got:\n%s", out)
	}
}

func TestWriter_ClosedWriter(t *testing.T) {
	w := NewWriter(zap.NewNop())
	w.Close()
	w.Close()

	called := false
	w.Enqueue("late", func(context.Context) error { called = true; return nil })
	if called {
		t.Error("job ran after Close")
	}
	if err := w.Flush(context.Background()); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Flush error = %v; want %v", err, ErrWriterClosed)
	}
}
