package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

func TestTestLogger_Levels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("debug message")
	testLogger.Info("info message", "key1", "value1", "number", 42)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), ErrorCodeKey, ErrorSingularMatrix)

	assert.NotContains(t, buffer.String(), "debug message")
	assert.True(t, testLogger.ContainsMessage("info message"))
	assert.True(t, testLogger.ContainsMessage("warning message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorSingularMatrix))
}

func TestTestLogger_With(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "KernelRegression",
		ComponentKey, "kernel",
	)
	contextLogger.Info("contextual message", OperationKey, OperationFit)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "KernelRegression"))
	assert.True(t, testLogger.ContainsField(OperationKey, OperationFit))
	assert.Equal(t, 1, testLogger.CountMessages("contextual message"))

	testLogger.Clear()
	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTestLogger_ConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	child := testLogger.With("worker", "x")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child.Info("tick", QueryIndexKey, i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, testLogger.CountMessages("tick"))
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	logger := p.GetLoggerWithName("kernel").With(ModelNameKey, "KernelRegression")
	logger.Debug("hidden")
	logger.Info("Training started", SamplesKey, 5, BandwidthKey, 10.0)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Training started", entry["message"])
	assert.Equal(t, "kernel", entry["logger"])
	assert.Equal(t, "KernelRegression", entry[ModelNameKey])
	assert.Equal(t, 5.0, entry[SamplesKey])
	assert.Equal(t, "info", entry["level"])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestZerologProvider_ErrorFieldAndWarnFunc(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug)

	p.GetLogger().Error("fit failed", kerrors.NewNotFittedError("KernelRegression", "Predict"))
	assert.Contains(t, buf.String(), `"error":"kernreg: KernelRegression: this model is not fitted yet`)
	assert.Contains(t, buf.String(), StacktraceAttrKey)

	buf.Reset()
	p.WarnFunc()(kerrors.NewSingularMatrixWarning("solveLocal", 2, 0, "pseudo-inverse"))
	assert.Contains(t, buf.String(), `"type":"SingularMatrixWarning"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	wrapped := kerrors.Wrapf(kerrors.NewSingularMatrixWarning("solveLocal", 2, 0, "pseudo-inverse"), "query %d", 4)
	p.WarnFunc()(wrapped)
	assert.Contains(t, buf.String(), `"type":"SingularMatrixWarning"`)
	assert.Contains(t, buf.String(), "query 4")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger().With(ModelNameKey, "KernelRegression")

	assert.NotPanics(t, func() {
		logger.Info("Training started", SamplesKey, 3)
		logger.Error("fit failed", kerrors.New("boom"))
	})
	assert.False(t, logger.Enabled(context.Background(), LevelError))
}

func TestSlogLogger_ErrAttr(t *testing.T) {
	var buf bytes.Buffer
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := NewSlogLogger(slog.New(handler)).With(ComponentKey, "kernel")

	logger.Error("solve failed", kerrors.NewValueError("solveLocal", "bad shape"))

	out := buf.String()
	assert.Contains(t, out, `"error":"kernreg: solveLocal: bad shape"`)
	assert.Contains(t, out, `"stacktrace"`)
	assert.Contains(t, out, `"ml.component":"kernel"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetProvider(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	prev := GetLogger()
	require.NotNil(t, prev)

	var buf bytes.Buffer
	SetProvider(NewZerologProvider(&buf, LevelDebug))
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelWarn))

	GetLoggerWithName("model_selection").Info("hello")
	assert.Contains(t, buf.String(), `"logger":"model_selection"`)
	assert.False(t, testLogger.ContainsMessage("hello"))
}
