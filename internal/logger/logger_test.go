package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture points the logger at a fresh buffer and restores stdout text
// logging when the test finishes.
func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	InitWithWriter(buf, level, format)
	t.Cleanup(func() {
		require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: "stdout"}))
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := capture(t, "DEBUG", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("WarnLevelHidesDebugAndInfo", func(t *testing.T) {
		buf := capture(t, "WARN", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})
}

func TestSetLevel(t *testing.T) {
	buf := capture(t, "INFO", "text")

	Debug("hidden")
	SetLevel("DEBUG")
	Debug("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t, "DEBUG", "json")

	Info("request accepted", KeyClientAddr, "10.0.0.1:5555", KeyOpcode, uint8(4))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request accepted", entry["msg"])
	assert.Equal(t, "10.0.0.1:5555", entry[KeyClientAddr])
}

func TestFieldHelpers(t *testing.T) {
	buf := capture(t, "DEBUG", "json")

	l := With(Opcode(5), SessionID(42), Path("/notes.txt"))
	l.Info("dispatch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 5, entry[KeyOpcode])
	assert.EqualValues(t, 42, entry[KeySessionID])
	assert.Equal(t, "/notes.txt", entry[KeyPath])
}

func TestContextLogging(t *testing.T) {
	buf := capture(t, "DEBUG", "json")

	lc := NewLogContext("127.0.0.1:9001").WithAuth("admin", 99)
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "session refreshed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "127.0.0.1:9001", entry[KeyClientAddr])
	assert.Equal(t, "admin", entry[KeyUsername])
	assert.EqualValues(t, 99, entry[KeySessionID])
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("1.2.3.4:1")
	clone := lc.WithAuth("bob", 7)

	assert.Equal(t, "", lc.Username, "original must not be mutated")
	assert.Equal(t, "bob", clone.Username)
	assert.EqualValues(t, 7, clone.SessionID)
}

func TestConcurrentLogging(t *testing.T) {
	buf := capture(t, "DEBUG", "text")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Info("concurrent", "n", n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, strings.Count(buf.String(), "concurrent"))
}

func TestErrAttrNilError(t *testing.T) {
	attr := Err(nil)
	assert.True(t, attr.Equal(attr), "nil error should produce a usable zero attr")
}

func TestInitRejectsUnwritableFile(t *testing.T) {
	err := Init(Config{Level: "INFO", Format: "text", Output: "/nonexistent-dir/cape.log"})
	assert.Error(t, err)
}
