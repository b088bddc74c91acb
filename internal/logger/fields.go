package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by every component that logs provider calls or session steps.
const (
	FieldProvider  = "provider"
	FieldOperation = "operation"
	FieldSession   = "session_id"
	FieldStep      = "step_order"
)

// nonEmpty builds string fields from key/value pairs, dropping pairs whose trimmed value is empty.
func nonEmpty(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if value := strings.TrimSpace(pairs[i+1]); value != "" {
			fields = append(fields, zap.String(pairs[i], value))
		}
	}
	return fields
}

// WithFields attaches fields to logger. A nil logger becomes a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// ProviderFields describe an external provider and the operation (model, API) in use.
func ProviderFields(provider, operation string) []zap.Field {
	return nonEmpty(FieldProvider, provider, FieldOperation, operation)
}

// WithProvider scopes logger to one provider operation.
func WithProvider(logger *zap.Logger, provider, operation string) *zap.Logger {
	return WithFields(logger, ProviderFields(provider, operation)...)
}

// SessionFields tie a log entry to one step of an interview session. Non-positive steps are omitted.
func SessionFields(sessionID string, step int) []zap.Field {
	fields := nonEmpty(FieldSession, sessionID)
	if step > 0 {
		fields = append(fields, zap.Int(FieldStep, step))
	}
	return fields
}
