package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PstrykSentinel/internal/model"
)

func testLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	return loc
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*PstrykFetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPstrykFetcher(srv.URL, "secret-token", "", "PstrykSentinel/test", testLoc(t), nil), srv
}

func TestPstrykFetcher_RequestShape(t *testing.T) {
	var got *http.Request
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`[]`))
	})

	s, err := f.FetchDay(context.Background(), model.DirectionSell, "2026-10-18")
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
	assert.Equal(t, model.Date("2026-10-18"), s.Date)

	require.NotNil(t, got)
	assert.Equal(t, "/prosumer-pricing/", got.URL.Path)
	assert.Equal(t, "hour", got.URL.Query().Get("resolution"))
	// Warsaw is UTC+2 on 2026-10-18.
	assert.Equal(t, "2026-10-17T22:00:00Z", got.URL.Query().Get("window_start"))
	assert.Equal(t, "2026-10-18T22:00:00Z", got.URL.Query().Get("window_end"))
	assert.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "PstrykSentinel/test", got.Header.Get("User-Agent"))
}

func TestPstrykFetcher_Endpoint(t *testing.T) {
	f := NewPstrykFetcher("", "x", "", "", testLoc(t), nil)
	raw, err := f.Endpoint(model.DirectionBuy, "2026-10-18")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "api.pstryk.pl", u.Host)
	assert.Equal(t, "/integrations/pricing/", u.Path)
}

func TestPstrykFetcher_DecodesBareList(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"time": "2026-10-18T01:00:00+02:00", "price": "0.35"},
			{"time": "2026-10-17T22:00:00Z", "price": 0.41},
			{"time": "2026-10-17T21:00:00", "price": 0.99},
			{"time": "2026-10-18T02:30:00+02:00", "price": 0.10}
		]`))
	})

	s, err := f.FetchDay(context.Background(), model.DirectionBuy, "2026-10-18")
	require.NoError(t, err)
	// 21:00 UTC is 23:00 of the previous local day; 02:30 is not aligned.
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 0, s.Points[0].Hour())
	assert.True(t, s.Points[0].Price.Equal(decimal.RequireFromString("0.41")))
	assert.Equal(t, 1, s.Points[1].Hour())
	assert.True(t, s.Points[1].Price.Equal(decimal.RequireFromString("0.35")))
	assert.NoError(t, s.Validate())
}

func TestPstrykFetcher_DecodesFrames(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"frames": [
			{"start": "2026-10-17T22:00:00+00:00", "price_gross": 0.52, "is_cheap": true},
			{"start": "2026-10-17T23:00:00+00:00", "price": -0.03, "price_gross": 0.01}
		]}`))
	})

	s, err := f.FetchDay(context.Background(), model.DirectionBuy, "2026-10-18")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.True(t, s.Points[0].Price.Equal(decimal.RequireFromString("0.52")))
	assert.True(t, s.Points[1].Price.Equal(decimal.RequireFromString("-0.03")))
}

func TestPstrykFetcher_AuthFailure(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"invalid token"}`))
		})

		_, err := f.FetchDay(context.Background(), model.DirectionBuy, "2026-10-18")
		require.Error(t, err)
		assert.True(t, IsAuthError(err), "status %d", status)
		assert.False(t, IsRetryable(err))
		assert.False(t, IsTransient(err))
		assert.Equal(t, ReasonInvalidAuth, FailureReason(err))
	}
}

func TestPstrykFetcher_ServerErrorIsNetworkError(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.FetchDay(context.Background(), model.DirectionBuy, "2026-10-18")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusBadGateway, ne.StatusCode)
	assert.True(t, IsRetryable(err))
	assert.True(t, IsTransient(err))
	assert.Equal(t, ReasonCannotConnect, FailureReason(err))
}

func TestPstrykFetcher_MalformedBodies(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"data": []}`,
		`[{"time": "yesterday", "price": 1}]`,
		`[{"time": "2026-10-18T00:00:00+02:00"}]`,
		`[{"price": 1}]`,
		``,
	}
	for _, body := range bodies {
		body := body
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := f.FetchDay(context.Background(), model.DirectionBuy, "2026-10-18")
		var me *MalformedResponseError
		assert.ErrorAs(t, err, &me, "body %q", body)
		assert.False(t, IsRetryable(err))
		assert.True(t, IsTransient(err))
	}
}

func TestPstrykFetcher_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.FetchDay(ctx, model.DirectionBuy, "2026-10-18")

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout)
	assert.Equal(t, ReasonTimeout, FailureReason(err))
}

func TestPstrykFetcher_ValidateToken(t *testing.T) {
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"frames": []}`))
	})
	assert.Equal(t, "", f.ValidateToken(context.Background(), time.Now()))

	bad, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	})
	assert.Equal(t, ReasonInvalidResponse, bad.ValidateToken(context.Background(), time.Now()))
}
