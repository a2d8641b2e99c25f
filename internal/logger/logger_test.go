package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	return buf, func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")
		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		got := buf.String()
		assert.Contains(t, got, "DEBUG")
		assert.Contains(t, got, "debug message")
		assert.Contains(t, got, "ERROR")
		assert.Contains(t, got, "error message")
	})

	t.Run("WarnLevelFiltersDebugAndInfo", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")
		Debug("debug message")
		Info("info message")
		Warn("warn message")

		got := buf.String()
		assert.NotContains(t, got, "debug message")
		assert.NotContains(t, got, "info message")
		assert.Contains(t, got, "warn message")
	})

	t.Run("SetLevelIsCaseInsensitive", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("debug")
		Debug("lowercase works")
		assert.Contains(t, buf.String(), "lowercase works")
	})

	t.Run("SetLevelIgnoresInvalidValues", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("NONSENSE")
		Debug("should be filtered")
		Info("should appear")

		got := buf.String()
		assert.NotContains(t, got, "should be filtered")
		assert.Contains(t, got, "should appear")
	})
}

func TestMessageFormatting(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Info("user logged in", "username", "alice")

	got := buf.String()
	assert.Regexp(t, `\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\]`, got)
	assert.Contains(t, got, "[INFO]")
	assert.Contains(t, got, "username=alice")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	defer SetFormat("text")

	Info("test message", "key1", "value1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value1", entry["key1"])
}

func TestContextLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	defer SetFormat("text")

	rc := &RequestContext{TraceID: "abc123", Handle: 7, Share: "public"}
	ctx := WithRequest(context.Background(), rc)

	InfoCtx(ctx, "request handled", "extra", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "abc123", entry["trace_id"])
	assert.Equal(t, float64(7), entry["handle"])
	assert.Equal(t, "public", entry["share"])
	assert.Equal(t, "value", entry["extra"])
}

func TestContextLoggingWithoutRequestContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	require.NotPanics(t, func() {
		InfoCtx(context.Background(), "no request context")
		InfoCtx(nil, "nil context")
	})
	assert.Contains(t, buf.String(), "no request context")
}

func TestFieldHelpers(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, "", attr.Key)

	attr = Err(assert.AnError)
	assert.Equal(t, KeyError, attr.Key)
	assert.Contains(t, attr.Value.String(), "assert.AnError")

	assert.Equal(t, KeyHandle, Handle(42).Key)
	assert.Equal(t, KeyShare, Share("public").Key)
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	const goroutines, perGoroutine = 10, 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				Info("goroutine log", "id", id, "iteration", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, goroutines*perGoroutine, len(lines))
}

func TestInitWithConfig(t *testing.T) {
	err := Init(Config{Level: "DEBUG", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	mu.Lock()
	output = os.Stdout
	mu.Unlock()
	reconfigure()
}
