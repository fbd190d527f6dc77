package router

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/router/aggregators"
)

const DefaultCallTimeout = 15 * time.Second

// SelectionMode decides which quote wins when several aggregators answer.
type SelectionMode uint8

const (
	MaximizeOutput SelectionMode = iota
	MinimizeInput
)

func (m SelectionMode) String() string {
	if m == MinimizeInput {
		return "minimize_input"
	}
	return "maximize_output"
}

// ResolvedQuote is the winning quote for one request. Quote is nil when no
// aggregator produced a usable answer.
type ResolvedQuote struct {
	Aggregator string
	Quote      *aggregators.Quote
}

type ResolverOption func(*QuoteResolver)

// WithCallTimeout bounds each aggregator call in a batch.
func WithCallTimeout(d time.Duration) ResolverOption {
	return func(r *QuoteResolver) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

func WithRecorder(rec Recorder) ResolverOption {
	return func(r *QuoteResolver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// QuoteResolver fans a batch of requests out to every aggregator and keeps the
// best answer per request.
type QuoteResolver struct {
	aggregators []aggregators.Aggregator
	callTimeout time.Duration
	recorder    Recorder
	tracer      trace.Tracer
}

// NewQuoteResolver keeps the aggregator order; it breaks ties between equal quotes.
func NewQuoteResolver(aggs []aggregators.Aggregator, opts ...ResolverOption) *QuoteResolver {
	r := &QuoteResolver{
		aggregators: aggs,
		callTimeout: DefaultCallTimeout,
		recorder:    nopRecorder{},
		tracer:      otel.Tracer("github.com/Cogwheel-Validator/spectra-xcs/xcs/router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *QuoteResolver) Aggregators() []aggregators.Aggregator {
	return r.aggregators
}

// Resolve returns one entry per request, in request order.
//
// Every aggregator is called concurrently with the whole batch. A failing,
// panicking or slow aggregator contributes nothing and never fails the batch.
func (r *QuoteResolver) Resolve(
	ctx context.Context,
	requests []aggregators.QuoteRequest,
	mode SelectionMode,
) []ResolvedQuote {
	results := make([]ResolvedQuote, len(requests))
	if len(requests) == 0 || len(r.aggregators) == 0 {
		return results
	}

	ctx, span := r.tracer.Start(ctx, "QuoteResolver.Resolve", trace.WithAttributes(
		attribute.Int("xcs.requests", len(requests)),
		attribute.Int("xcs.aggregators", len(r.aggregators)),
		attribute.String("xcs.selection_mode", mode.String()),
	))
	defer span.End()

	answers := make([][]*aggregators.Quote, len(r.aggregators))
	var g errgroup.Group
	for i, agg := range r.aggregators {
		g.Go(func() error {
			answers[i] = r.call(ctx, agg, requests)
			return nil
		})
	}
	_ = g.Wait()

	found := 0
	for idx := range requests {
		for ai, quotes := range answers {
			if quotes == nil {
				continue
			}
			q := quotes[idx]
			if !usable(q, mode) {
				continue
			}
			if results[idx].Quote == nil || better(q, results[idx].Quote, mode) {
				results[idx] = ResolvedQuote{Aggregator: r.aggregators[ai].Name(), Quote: q}
			}
		}
		if results[idx].Quote != nil {
			found++
		}
	}
	span.SetAttributes(attribute.Int("xcs.resolved", found))

	return results
}

// resolve is Resolve that fails with the context error once ctx is done, as
// every slot of an abandoned batch is empty.
func (r *QuoteResolver) resolve(
	ctx context.Context,
	requests []aggregators.QuoteRequest,
	mode SelectionMode,
) ([]ResolvedQuote, error) {
	results := r.Resolve(ctx, requests, mode)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("quote batch abandoned: %w", err)
	}
	return results, nil
}

type callResult struct {
	quotes []*aggregators.Quote
	err    error
}

// call returns nil when the aggregator failed, otherwise exactly one entry per request.
func (r *QuoteResolver) call(
	ctx context.Context,
	agg aggregators.Aggregator,
	requests []aggregators.QuoteRequest,
) []*aggregators.Quote {
	name := agg.Name()
	ctx, span := r.tracer.Start(ctx, "aggregator.GetQuotes", trace.WithAttributes(
		attribute.String("xcs.aggregator", name),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		quotes, err := agg.GetQuotes(callCtx, requests)
		done <- callResult{quotes: quotes, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		// The goroutine is left to finish on its own; done is buffered.
		res = callResult{err: fmt.Errorf("no answer: %w", callCtx.Err())}
	}
	if res.err == nil && len(res.quotes) != len(requests) {
		res = callResult{err: fmt.Errorf("returned %d quotes for %d requests", len(res.quotes), len(requests))}
	}

	elapsed := time.Since(start)
	if res.err != nil {
		perr := &ProviderError{Aggregator: name, Err: res.err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, "aggregator failed")
		loggerFor(ctx).Warn().
			Err(perr).
			Str("aggregator", name).
			Int("requests", len(requests)).
			Dur("elapsed", elapsed).
			Msg("Aggregator batch dropped")
		r.recorder.AggregatorCall(name, len(requests), 0, elapsed, perr)
		return nil
	}

	answered := 0
	for _, q := range res.quotes {
		if q != nil {
			answered++
		}
	}
	loggerFor(ctx).Debug().
		Str("aggregator", name).
		Int("requests", len(requests)).
		Int("answered", answered).
		Dur("elapsed", elapsed).
		Msg("Aggregator batch answered")
	r.recorder.AggregatorCall(name, len(requests), answered, elapsed, nil)

	return res.quotes
}

func usable(q *aggregators.Quote, mode SelectionMode) bool {
	if q == nil {
		return false
	}
	if mode == MinimizeInput {
		return q.InputAmount != nil && q.InputAmount.Sign() > 0
	}
	return q.OutputAmountMinimum != nil && q.OutputAmountMinimum.Sign() >= 0
}

// better is strict, so the earlier aggregator keeps a tie.
func better(candidate, current *aggregators.Quote, mode SelectionMode) bool {
	if mode == MinimizeInput {
		return candidate.InputAmount.Cmp(current.InputAmount) < 0
	}
	return candidate.OutputAmountMinimum.Cmp(current.OutputAmountMinimum) > 0
}
