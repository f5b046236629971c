package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// TradeContext creates a logger for simulated trade operations
func TradeContext(userID, strategy, action string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"user_id":  userID,
		"strategy": strategy,
		"action":   action,
	}).WithComponent("trades")
}

// BacktestContext creates a logger for backtest runs
func BacktestContext(userID, strategy string, days int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"user_id":  userID,
		"strategy": strategy,
		"days":     days,
	}).WithComponent("backtest")
}

// BillingContext creates a logger for billing operations
func BillingContext(userID, operation string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"user_id":   userID,
		"operation": operation,
	}).WithComponent("billing")
}

// AlertContext creates a logger for webhook alert processing
func AlertContext(strategy, symbol, action string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"strategy": strategy,
		"symbol":   symbol,
		"action":   action,
	}).WithComponent("alerts")
}

// VenueContext creates a logger for venue client calls
func VenueContext(venue, endpoint string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"venue":    venue,
		"endpoint": endpoint,
	}).WithComponent("venues")
}

// DatabaseContext creates a logger for database operations
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}
