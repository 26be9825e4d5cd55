// Package logger wraps zap to provide a global sugared logger with a console
// encoder, level parsing, and helpers that carry a scoped logger on a
// context.Context so the monitor, scheduler and clients log with their names.
package logger
