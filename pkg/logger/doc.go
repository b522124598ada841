// Package logger provides slog attribute helpers shared across the MFA
// packages so log keys stay consistent and sensitive material stays out of
// the log stream.
package logger
