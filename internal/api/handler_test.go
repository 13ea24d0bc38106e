package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PstrykSentinel/internal/collector"
	"PstrykSentinel/internal/coordinator"
	"PstrykSentinel/internal/model"
	"PstrykSentinel/internal/recorder"
	"PstrykSentinel/internal/strategy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeState struct {
	snap   *model.PriceSnapshot
	status coordinator.Status
}

func (f *fakeState) Snapshot() *model.PriceSnapshot { return f.snap }
func (f *fakeState) Status() coordinator.Status     { return f.status }

type fakeRefresher struct {
	res *coordinator.CycleResult
	err error
}

func (f *fakeRefresher) TriggerRefresh(_ context.Context) (*coordinator.CycleResult, error) {
	return f.res, f.err
}

type fakeHistory struct {
	events []recorder.CycleEvent
	err    error
	limit  int
}

func (f *fakeHistory) RecentCycles(limit int) ([]recorder.CycleEvent, error) {
	f.limit = limit
	return f.events, f.err
}

func testSnapshot(t *testing.T) *model.PriceSnapshot {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 12, 30, 0, 0, loc)

	build := func(dir model.Direction) model.DirectionSnapshot {
		today, err := collector.GenerateDay("2026-10-18", loc, dir)
		require.NoError(t, err)
		return strategy.BuildDirection(dir, today, model.EmptySeries("2026-10-19"),
			model.SourceFresh, model.SourceNone, strategy.DefaultRule(), now)
	}
	return &model.PriceSnapshot{
		GeneratedAt: now,
		RetrievedAt: now,
		Outcome:     model.StateSuccess,
		Buy:         build(model.DirectionBuy),
		Sell:        build(model.DirectionSell),
	}
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestSnapshot_NotFoundBeforeFirstCycle(t *testing.T) {
	h := NewHandler(&fakeState{}, &fakeRefresher{}, &fakeHistory{}, nil, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/snapshot")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errNoSnapshot.Error(), body["error"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/prices/buy")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrices_DirectionView(t *testing.T) {
	h := NewHandler(&fakeState{snap: testSnapshot(t)}, &fakeRefresher{}, &fakeHistory{}, nil, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/prices/buy")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "buy", body["direction"])
	assert.InDelta(t, 0.47, body["current_price"], 1e-9)
	assert.InDelta(t, 0.48, body["next_hour_price"], 1e-9)
	assert.Equal(t, "fresh", body["today_source"])
	assert.Equal(t, "none", body["tomorrow_source"])
	assert.Equal(t, false, body["stale"])
	assert.Len(t, body["prices_today"], 24)
	assert.Empty(t, body["prices_tomorrow"])
	assert.NotNil(t, body["cheap_threshold"])

	first := body["prices_today"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 0, first["hour"])
	assert.InDelta(t, 0.45, first["price"], 1e-9)

	// Evening peak hours are still ahead at 12:30.
	expensive := body["expensive_hours"].([]any)
	require.NotEmpty(t, expensive)
	for _, e := range expensive {
		entry := e.(map[string]any)
		assert.GreaterOrEqual(t, entry["hour"], float64(12))
		assert.Equal(t, "2026-10-18", entry["date"])
		assert.NotEmpty(t, entry["timestamp"])
	}
}

func TestPrices_UnknownDirection(t *testing.T) {
	h := NewHandler(&fakeState{snap: testSnapshot(t)}, &fakeRefresher{}, &fakeHistory{}, nil, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/prices/hold")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "hold")
}

func TestSnapshot_BothDirections(t *testing.T) {
	h := NewHandler(&fakeState{snap: testSnapshot(t)}, &fakeRefresher{}, &fakeHistory{}, nil, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["outcome"])

	sell := body["sell"].(map[string]any)
	assert.InDelta(t, 0.32, sell["current_price"], 1e-9)
}

func TestRefresh_StatusCodes(t *testing.T) {
	started := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ref  *fakeRefresher
		code int
	}{
		{
			name: "completed",
			ref: &fakeRefresher{res: &coordinator.CycleResult{
				ID: "c1", Trigger: model.TriggerManual, Outcome: model.StateDegraded, Stale: true,
				StartedAt: started, FinishedAt: started.Add(time.Second),
				Failures: map[model.SeriesKey]string{{Direction: model.DirectionSell, Day: model.DayToday}: "timeout"},
			}},
			code: http.StatusAccepted,
		},
		{name: "in progress", ref: &fakeRefresher{err: coordinator.ErrRefreshInProgress}, code: http.StatusConflict},
		{name: "cooldown", ref: &fakeRefresher{err: coordinator.ErrTooSoon}, code: http.StatusTooManyRequests},
		{name: "other", ref: &fakeRefresher{err: errors.New("boom")}, code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeState{}, tt.ref, &fakeHistory{}, nil, nil)
			rec, body := do(t, h, http.MethodPost, "/api/v1/refresh")
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusAccepted {
				assert.Equal(t, "degraded", body["outcome"])
				assert.Equal(t, "MANUAL", body["trigger"])
				assert.Equal(t, []any{"sell/today: timeout"}, body["failures"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestStatus_AuthFailedIsUnavailable(t *testing.T) {
	state := &fakeState{status: coordinator.Status{State: model.StateIdle, LastOutcome: model.StateSuccess}}
	h := NewHandler(state, &fakeRefresher{}, &fakeHistory{}, nil, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["last_outcome"])

	state.status = coordinator.Status{State: model.StateIdle, LastOutcome: model.StateFailed, AuthFailed: true, LastError: "401"}
	rec, body = do(t, h, http.MethodGet, "/api/v1/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, true, body["auth_failed"])
}

func TestDiagnostics(t *testing.T) {
	started := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	hist := &fakeHistory{events: []recorder.CycleEvent{{
		ID: "c1", Trigger: "TICK", Outcome: "success", StartedAt: started, FinishedAt: started,
		BuyCheap: 5, BuyExpensive: 5,
	}}}
	cfg := map[string]string{"api_token": "***"}
	h := NewHandler(&fakeState{snap: testSnapshot(t)}, &fakeRefresher{}, hist, cfg, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/diagnostics?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.limit)
	assert.Equal(t, map[string]any{"api_token": "***"}, body["config"])
	assert.NotNil(t, body["snapshot"])

	cycles := body["recent_cycles"].([]any)
	require.Len(t, cycles, 1)
	c := cycles[0].(map[string]any)
	assert.Equal(t, "c1", c["id"])
	assert.Nil(t, c["buy_current"])
	assert.EqualValues(t, 5, c["buy_cheap_hours"])
	assert.Equal(t, []any{}, c["failures"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/diagnostics?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagnostics_HistoryError(t *testing.T) {
	h := NewHandler(&fakeState{}, &fakeRefresher{}, &fakeHistory{err: errors.New("db closed")}, nil, nil)

	rec, body := do(t, h, http.MethodGet, "/api/v1/diagnostics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "db closed", body["history_error"])
	assert.Nil(t, body["snapshot"])
	assert.Equal(t, []any{}, body["recent_cycles"])
}
