package router

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var routerLog zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	routerLog = zerolog.New(out).With().Timestamp().Str("component", "xcs-router").Logger()
}

// SetLogger replaces the component logger used when the context carries none.
func SetLogger(l zerolog.Logger) {
	routerLog = l.With().Str("component", "xcs-router").Logger()
}

// loggerFor prefers the request scoped logger attached with zerolog's
// WithContext and falls back to the component logger.
func loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &routerLog
}

// Recorder receives engine measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// AggregatorCall is reported once per aggregator per resolver batch.
	AggregatorCall(aggregator string, requested, answered int, elapsed time.Duration, err error)
	// Operation is reported once per public engine call.
	Operation(name string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) AggregatorCall(string, int, int, time.Duration, error) {}
func (nopRecorder) Operation(string, time.Duration, error)                {}
