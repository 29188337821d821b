package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"

	FieldSchemeID  = "scheme_id"
	FieldEmail     = "email"
	FieldRequestID = "request_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ModelFields describes the AI provider and model serving a call. Empty values
// are dropped.
func ModelFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithModel(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ModelFields(provider, model)...)
}

// UserFields returns the fields identifying the citizen a request is about.
// The email is masked.
func UserFields(email, requestID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldEmail, Value: MaskEmail(email)},
		StringField{Key: FieldRequestID, Value: requestID},
	)
}

// MaskEmail keeps the first character of the local part and the domain:
// "asha@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return strings.Repeat("*", min(len(email), 3))
	}

	first := []rune(local)[0]
	return string(first) + "***@" + domain
}
