package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AdminID records the administrator identifier under the key "admin_id".
func AdminID(id uuid.UUID) slog.Attr {
	return slog.String("admin_id", id.String())
}

// Redacted marks a sensitive value without recording it. Secrets, TOTP codes
// and challenge tokens must never reach the log stream; log their presence
// with Redacted(key) instead.
func Redacted(key string) slog.Attr {
	return slog.String(key, "[redacted]")
}
