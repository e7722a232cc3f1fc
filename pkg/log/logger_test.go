package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/bratbench/pkg/errors"
)

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerJSONIncludesStacktrace(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf, "debug", FormatJSON))
	t.Cleanup(func() { SetProvider(newSlogProvider(&bytes.Buffer{}, FormatConsole, LevelInfo)) })

	logger := GetLoggerWithName("tuning")
	logger.Error("trial failed", scigoErrors.New("boom"), TrialsKey, 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trial failed", entry["message"])
	assert.Equal(t, "ERROR", entry["severity"])
	assert.Equal(t, "tuning", entry[ComponentKey])
	assert.Equal(t, "boom", entry[ErrAttrKey])
	assert.NotEmpty(t, entry[StacktraceAttrKey])
	assert.EqualValues(t, 3, entry[TrialsKey])
}

func TestSetupLoggerRejectsUnknownFormat(t *testing.T) {
	err := SetupLogger(&bytes.Buffer{}, "info", "xml")
	require.Error(t, err)

	var verr *scigoErrors.ValidationError
	assert.True(t, scigoErrors.As(err, &verr))
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	logger := p.GetLoggerWithName("brat").With(ModelNameKey, "BRATD")
	logger.Debug("hidden")
	logger.Info("round done", IterationKey, 4, MSEKey, 1.25)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "round done", entry["message"])
	assert.Equal(t, "brat", entry[ComponentKey])
	assert.Equal(t, "BRATD", entry[ModelNameKey])
	assert.EqualValues(t, 4, entry[IterationKey])

	p.SetLevel(LevelDebug)
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestZerologProviderRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	SetProvider(NewZerologProvider(&buf, LevelDebug))
	t.Cleanup(func() {
		SetProvider(newSlogProvider(&bytes.Buffer{}, FormatConsole, LevelInfo))
		scigoErrors.SetZerologWarnFunc(nil)
	})

	scigoErrors.Warn(scigoErrors.NewConvergenceWarning("ElasticNet", 1000, ""))

	out := buf.String()
	assert.Contains(t, out, "ElasticNet failed to converge")
	assert.Contains(t, out, `"warning_type":"ConvergenceWarning"`)
}

func TestTestLogger(t *testing.T) {
	logger, buf := NewTestLogger(LevelInfo)

	logger.Debug("dropped")
	logger.With(ModelNameKey, "GBT").Info("Training completed", StagesKey, 10)
	logger.Error("failed", scigoErrors.New("bad input"))

	assert.NotContains(t, buf.String(), "dropped")
	assert.True(t, logger.ContainsMessage("Training completed"))
	assert.True(t, logger.ContainsField(ModelNameKey, "GBT"))
	assert.True(t, logger.ContainsField(StagesKey, float64(10)))
	assert.True(t, logger.ContainsField(ErrAttrKey, "bad input"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	logger.Clear()
	assert.Empty(t, buf.String())
}

func TestTestLoggerProviderSetLevel(t *testing.T) {
	p, buf := NewTestLoggerProvider(LevelWarn)
	logger := p.GetLoggerWithName("experiment")

	logger.Info("quiet")
	assert.Empty(t, buf.String())

	p.SetLevel(LevelInfo)
	logger.Info("loud")
	assert.Contains(t, buf.String(), `"ml.component":"experiment"`)
}
