package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop() })
	t.Setenv("LEXISYNC_LOG_LEVEL", "")

	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARNING", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		if err := Init(tt.level); err != nil {
			t.Fatalf("Init(%q): %v", tt.level, err)
		}
		if !Log.Core().Enabled(tt.want) || (tt.want > zapcore.DebugLevel && Log.Core().Enabled(tt.want-1)) {
			t.Errorf("Init(%q): logger not at %v", tt.level, tt.want)
		}
	}
}

func TestInitEnvFallback(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop() })
	t.Setenv("LEXISYNC_LOG_LEVEL", "error")
	if err := Init(""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("env level ignored")
	}
}

func TestInitInvalid(t *testing.T) {
	if err := Init("chatty"); err == nil {
		t.Error("Init accepted an unknown level")
	}
}
