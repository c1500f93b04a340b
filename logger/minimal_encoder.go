package logger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Muted terminal palette (warm, easy on eyes)
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorFg     = "\x1b[38;5;223m" // Soft cream
	colorAqua   = "\x1b[38;5;108m" // Muted cyan-green: timestamps, IDs
	colorOrange = "\x1b[38;5;208m" // Warm orange: component names
	colorYellow = "\x1b[38;5;214m" // Soft yellow: warnings
	colorGreen  = "\x1b[38;5;142m" // Muted green: numbers
	colorBlue   = "\x1b[38;5;109m" // Soft blue: models, providers
	colorRed    = "\x1b[38;5;167m" // Warm red: errors
	colorRedBg  = "\x1b[48;5;88m"
	colorYelBg  = "\x1b[48;5;58m"
)

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  a.anthropic  Chat completed  model=claude-3-sonnet 420ms"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	// Create a base JSON encoder for field serialization (internal use only)
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	// Time
	final.AppendString(colorAqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only show for WARN/ERROR with bold + background
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name (abbreviated) for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorOrange)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Message
	final.AppendString("  ")
	final.AppendString(colorFg)
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	// Fields rendered as compact key=value pairs
	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(renderFields(fields))
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for non-INFO levels
func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return colorBlue + "DEBUG" + colorReset
	case zapcore.WarnLevel:
		return colorBold + colorYelBg + colorYellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorRedBg + colorRed + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorRedBg + colorRed + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: server -> s, ai.anthropic -> a.anthropic
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// fieldValue extracts a printable value from a zap field.
// Every field type must produce SOME representation: silently dropping a
// field loses debugging information.
func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type,
		zapcore.UintptrType:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.Float64Type:
		return fmt.Sprintf("%v", math.Float64frombits(uint64(field.Integer)))
	case zapcore.Float32Type:
		return fmt.Sprintf("%v", math.Float32frombits(uint32(field.Integer)))
	case zapcore.BoolType:
		if field.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.DurationType:
		return fmt.Sprintf("%dms", field.Integer/1e6)
	case zapcore.TimeType:
		t := time.Unix(0, field.Integer)
		if loc, ok := field.Interface.(*time.Location); ok && loc != nil {
			t = t.In(loc)
		}
		return t.Format(time.RFC3339)
	case zapcore.ByteStringType:
		if b, ok := field.Interface.([]byte); ok {
			return string(b)
		}
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// valueColor picks a color by field key so related entries line up visually:
// identifiers in aqua, model/provider names in blue, counts and timings in
// green, errors in red.
func valueColor(key string) string {
	switch key {
	case FieldRequestID, FieldPromptID:
		return colorAqua
	case FieldModel, FieldProvider, FieldMode:
		return colorBlue
	case FieldError:
		return colorRed
	case FieldDurationMS, FieldCount, FieldInputTokens, FieldOutputTokens, FieldPort, FieldLimit:
		return colorGreen
	default:
		return colorFg
	}
}

// renderFields flattens structured fields into "key=value" pairs.
// duration_ms gets its unit appended so timings read naturally.
func renderFields(fields []zapcore.Field) string {
	var parts []string
	for _, field := range fields {
		val := fieldValue(field)
		if val == "" {
			continue
		}
		suffix := ""
		if field.Key == FieldDurationMS && field.Type != zapcore.DurationType {
			suffix = "ms"
		}
		parts = append(parts, colorFg+field.Key+"="+colorReset+valueColor(field.Key)+val+suffix+colorReset)
	}
	return strings.Join(parts, " ")
}
