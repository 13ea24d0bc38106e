package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PstrykSentinel/internal/coordinator"
	"PstrykSentinel/internal/model"
	"PstrykSentinel/internal/recorder"
)

const basePath = "/api/v1"

var errNoSnapshot = errors.New("no price snapshot yet")

// State exposes the published snapshot and refresh health.
type State interface {
	Snapshot() *model.PriceSnapshot
	Status() coordinator.Status
}

// Refresher runs a manual cycle.
type Refresher interface {
	TriggerRefresh(ctx context.Context) (*coordinator.CycleResult, error)
}

// History lists recent cycles.
type History interface {
	RecentCycles(limit int) ([]recorder.CycleEvent, error)
}

type Handler struct {
	router    *gin.Engine
	state     State
	refresher Refresher
	history   History
	config    any
	logger    *zap.Logger
}

// NewHandler wires the host API. config is exposed as-is by the diagnostics
// endpoint and must already be redacted.
func NewHandler(state State, refresher Refresher, history History, config any, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:    router,
		state:     state,
		refresher: refresher,
		history:   history,
		config:    config,
		logger:    logger,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	v1 := h.router.Group(basePath)
	{
		v1.GET("/snapshot", h.getSnapshot)
		v1.GET("/prices/:direction", h.getPrices)
		v1.POST("/refresh", h.postRefresh)
		v1.GET("/status", h.getStatus)
		v1.GET("/diagnostics", h.getDiagnostics)
	}
}

func (h *Handler) getSnapshot(c *gin.Context) {
	snap := h.state.Snapshot()
	if snap == nil {
		writeError(c, http.StatusNotFound, errNoSnapshot)
		return
	}
	c.JSON(http.StatusOK, newSnapshotView(snap))
}

func (h *Handler) getPrices(c *gin.Context) {
	dir, err := model.ParseDirection(c.Param("direction"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	snap := h.state.Snapshot()
	if snap == nil {
		writeError(c, http.StatusNotFound, errNoSnapshot)
		return
	}
	c.JSON(http.StatusOK, newDirectionView(snap.Direction(dir), snap.RetrievedAt))
}

func (h *Handler) postRefresh(c *gin.Context) {
	res, err := h.refresher.TriggerRefresh(c.Request.Context())
	switch {
	case errors.Is(err, coordinator.ErrRefreshInProgress):
		writeError(c, http.StatusConflict, err)
		return
	case errors.Is(err, coordinator.ErrTooSoon):
		writeError(c, http.StatusTooManyRequests, err)
		return
	case err != nil:
		h.logger.Error("manual refresh", zap.Error(err))
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusAccepted, newRefreshView(res))
}

func (h *Handler) getStatus(c *gin.Context) {
	st := h.state.Status()
	code := http.StatusOK
	if st.AuthFailed {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

func (h *Handler) getDiagnostics(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	body := gin.H{
		"config":   h.config,
		"status":   h.state.Status(),
		"snapshot": newSnapshotView(h.state.Snapshot()),
	}
	cycles, err := h.history.RecentCycles(limit)
	if err != nil {
		h.logger.Warn("read cycle history", zap.Error(err))
		body["history_error"] = err.Error()
		cycles = nil
	}
	body["recent_cycles"] = newCycleViews(cycles)
	c.JSON(http.StatusOK, body)
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
