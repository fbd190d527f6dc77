package sqsquery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"
)

const quoteBody = `{"amount_in":{"denom":"uosmo","amount":"1000000"},"amount_out":"2500000","route":[{"pools":[{"id":1,"type":0,"token_out_denom":"uusdc"}],"out_amount":"2500000","in_amount":"1000000"}],"price_impact":"-0.001","effective_fee":"0.002"}`

func testConfig() FailoverConfig {
	return FailoverConfig{MaxRetries: 1, RetryDelay: time.Millisecond, Timeout: time.Second}
}

func TestQuoteExactInQueryShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/router/quote")
		q := r.URL.Query()
		assert.Equal(t, q.Get("tokenIn"), "1000000uosmo")
		assert.Equal(t, q.Get("tokenOutDenom"), "uusdc")
		assert.Equal(t, q.Get("singleRoute"), "true")
		assert.Equal(t, q.Get("applyExponents"), "false")
		_, _ = w.Write([]byte(quoteBody))
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, testConfig())
	assert.NoError(t, err)
	defer c.Close()

	resp, err := c.QuoteExactIn(context.Background(), Coin{Denom: "uosmo", Amount: "1000000"}, "uusdc", true)
	assert.NoError(t, err)
	assert.Equal(t, resp.AmountOut, "2500000")
	assert.Equal(t, resp.AmountIn.Denom, "uosmo")
	assert.Equal(t, len(resp.Route), 1)
	assert.Equal(t, resp.Route[0].Pools[0].TokenOutDenom, "uusdc")
}

func TestQuoteExactOutQueryShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, q.Get("tokenOut"), "5uusdc")
		assert.Equal(t, q.Get("tokenInDenom"), "uosmo")
		_, _ = w.Write([]byte(quoteBody))
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, testConfig())
	assert.NoError(t, err)
	_, err = c.QuoteExactOut(context.Background(), Coin{Denom: "uusdc", Amount: "5"}, "uosmo", false)
	assert.NoError(t, err)
}

func TestFailoverToBackup(t *testing.T) {
	var primaryHits atomic.Int64
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthcheck" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(quoteBody))
	}))
	defer backup.Close()

	c, err := NewClient([]string{primary.URL, backup.URL}, testConfig())
	assert.NoError(t, err)
	defer c.Close()

	resp, err := c.QuoteExactIn(context.Background(), Coin{Denom: "uosmo", Amount: "1"}, "uusdc", false)
	assert.NoError(t, err)
	assert.Equal(t, resp.AmountOut, "2500000")
	assert.Equal(t, primaryHits.Load(), int64(2))
	assert.Equal(t, c.activeIndex(), 1)
}

func TestBadRequestIsNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no route", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, testConfig())
	assert.NoError(t, err)
	_, err = c.QuoteExactIn(context.Background(), Coin{Denom: "a", Amount: "1"}, "b", false)

	var status *StatusError
	assert.True(t, errors.As(err, &status))
	assert.Equal(t, status.Code, http.StatusBadRequest)
	assert.Equal(t, hits.Load(), int64(1))
}

func TestNewClientRejectsEmptyList(t *testing.T) {
	_, err := NewClient([]string{"::not a url"}, testConfig())
	assert.True(t, errors.Is(err, ErrNoEndpoints))
}
