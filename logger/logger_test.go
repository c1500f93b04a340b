package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{
			name:       "JSON output mode",
			jsonOutput: true,
		},
		{
			name:       "Console output mode",
			jsonOutput: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global logger
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput)
			if err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			if Logger == nil {
				t.Error("Initialize() did not set global Logger")
			}
			if JSONOutput != tt.jsonOutput {
				t.Errorf("Initialize() JSONOutput = %v, want %v", JSONOutput, tt.jsonOutput)
			}

			// Cleanup
			if Logger != nil {
				Logger.Sync()
				Logger = nil
			}
		})
	}
}

func TestHelpersSafeBeforeInitialize(t *testing.T) {
	// The package init installs a no-op logger; helpers must not panic
	// even if Initialize was never called.
	saved := Logger
	defer func() { Logger = saved }()

	Logger = zap.NewNop().Sugar()

	Info("info")
	Infof("info %d", 1)
	Infow("info", "key", "value")
	Warn("warn")
	Warnf("warn %d", 2)
	Warnw("warn", "key", "value")
	Error("error")
	Errorf("error %d", 3)
	Errorw("error", "key", "value")
	Debug("debug")
	Debugf("debug %d", 4)
	Debugw("debug", "key", "value")
	Cleanup()
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{0, zapcore.WarnLevel},
		{1, zapcore.InfoLevel},
		{2, zapcore.DebugLevel},
		{3, zapcore.DebugLevel},
		{4, zapcore.DebugLevel},
		{7, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.want {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		verbosity int
		want      string
	}{
		{0, "User"},
		{1, "Info (-v)"},
		{2, "Debug (-vv)"},
		{3, "Trace (-vvv)"},
		{4, "All (-vvvv)"},
		{9, "All (-vvvv+)"},
	}

	for _, tt := range tests {
		if got := LevelName(tt.verbosity); got != tt.want {
			t.Errorf("LevelName(%d) = %q, want %q", tt.verbosity, got, tt.want)
		}
	}
}

func TestShouldOutput(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		category  OutputCategory
		want      bool
	}{
		{"results always shown", 0, OutputResults, true},
		{"errors always shown", 0, OutputErrors, true},
		{"progress hidden by default", 0, OutputProgress, false},
		{"progress at -v", 1, OutputProgress, true},
		{"routing hidden at -v", 1, OutputRouting, false},
		{"routing at -vv", 2, OutputRouting, true},
		{"sql hidden at -vv", 2, OutputSQLQueries, false},
		{"sql at -vvv", 3, OutputSQLQueries, true},
		{"bodies only at -vvvv", 3, OutputRequestBody, false},
		{"bodies at -vvvv", 4, OutputRequestBody, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldOutput(tt.verbosity, tt.category); got != tt.want {
				t.Errorf("ShouldOutput(%d, %v) = %v, want %v", tt.verbosity, tt.category, got, tt.want)
			}
		})
	}
}

func TestFieldsFromContext(t *testing.T) {
	ctx := context.Background()

	if fields := FieldsFromContext(ctx); len(fields) != 0 {
		t.Errorf("empty context should yield no fields, got %v", fields)
	}

	ctx = WithRequestID(ctx, "req-123")
	ctx = WithComponent(ctx, "execution")

	fields := FieldsFromContext(ctx)
	if len(fields) != 4 {
		t.Fatalf("expected 4 elements (2 pairs), got %d: %v", len(fields), fields)
	}

	want := map[string]string{
		FieldRequestID: "req-123",
		FieldComponent: "execution",
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, _ := fields[i].(string)
		val, _ := fields[i+1].(string)
		if want[key] != val {
			t.Errorf("field %s = %q, want %q", key, val, want[key])
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()
	Logger = zap.NewNop().Sugar()

	// Empty context returns the global logger unchanged
	if got := LoggerFromContext(context.Background()); got != Logger {
		t.Error("empty context should return the global logger")
	}

	ctx := WithRequestID(context.Background(), "req-456")
	if got := LoggerFromContext(ctx); got == Logger {
		t.Error("context with fields should return a derived logger")
	}
}

func TestComponentLogger(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()
	Logger = zap.NewNop().Sugar()

	cl := ComponentLogger("analysis")
	if cl == nil {
		t.Fatal("ComponentLogger returned nil")
	}

	child := ChildLogger(cl, "request_id", "req-789")
	if child == nil {
		t.Fatal("ChildLogger returned nil")
	}
}
