package aggregators

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Cogwheel-Validator/spectra-xcs/xcs/chaindata"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "aggregators").Logger()
}

// DefaultRequestConcurrency caps in-flight venue requests per batch.
const DefaultRequestConcurrency = 8

// HTTPError is a non 2xx venue answer.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, body)
}

// GetJSON issues a GET and decodes a 2xx JSON body into out.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: body}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// QuoteFunc prices a single request. A nil quote with a nil error means no route.
type QuoteFunc func(ctx context.Context, req QuoteRequest) (*Quote, error)

// QuoteEach runs fn for every request with at most limit in flight. A failing
// request becomes a nil entry and is logged; it never fails the batch.
func QuoteEach(ctx context.Context, venue string, requests []QuoteRequest, limit int, fn QuoteFunc) []*Quote {
	out := make([]*Quote, len(requests))
	if limit <= 0 {
		limit = DefaultRequestConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range requests {
		g.Go(func() error {
			q, err := fn(ctx, req)
			if err != nil {
				c := req.Common()
				log.Warn().
					Err(err).
					Str("venue", venue).
					Stringer("chain", c.Chain).
					Stringer("type", req.Type()).
					Msg("Quote request failed")
				return nil
			}
			out[i] = q
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// EVMAddress renders the trailing 20 bytes as an EIP-55 checksummed address.
func EVMAddress(a chaindata.Address) string {
	return common.BytesToAddress(a.Last20()).Hex()
}
