package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
	"github.com/yungbote/neurobridge-backend/internal/registry/claim"
	"github.com/yungbote/neurobridge-backend/internal/registry/engine"
	"github.com/yungbote/neurobridge-backend/internal/registry/eventbus"
	"github.com/yungbote/neurobridge-backend/internal/registry/lifecycle"
	"github.com/yungbote/neurobridge-backend/internal/registry/metrics"
	"github.com/yungbote/neurobridge-backend/internal/registry/pause"
	"github.com/yungbote/neurobridge-backend/internal/registry/query"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
)

// Handlers wires the registry's application services to gin. It mirrors
// internal/http/handlers/job.go's shape: one struct, one method per route,
// RespondOK/RespondError at the boundary.
type Handlers struct {
	engine  engine.Engine
	claim   claim.Protocol
	life    lifecycle.Lifecycle
	query   query.API
	pause   pause.Controller
	bus     eventbus.Bus
	metrics *metrics.Registry
	log     *logger.Logger
}

// NewHandlers constructs the HTTP handler set. bus and m may be nil (e.g. in
// handler-level tests that don't exercise pause/resume's side effects).
func NewHandlers(eng engine.Engine, cl claim.Protocol, life lifecycle.Lifecycle, qa query.API, pauseCtl pause.Controller, bus eventbus.Bus, m *metrics.Registry, baseLog *logger.Logger) *Handlers {
	return &Handlers{
		engine:  eng,
		claim:   cl,
		life:    life,
		query:   qa,
		pause:   pauseCtl,
		bus:     bus,
		metrics: m,
		log:     baseLog.With("component", "registry.Handlers"),
	}
}

type createJobRequest struct {
	ID          string `json:"id"`
	Owner       string `json:"owner" binding:"required"`
	SourceRef   string `json:"source_ref" binding:"required"`
	DisplayName string `json:"display_name"`
	EngineHint  string `json:"engine_hint"`
}

// CreateJob handles POST /api/jobs.
func (h *Handlers) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	job, err := h.engine.Create(c.Request.Context(), engine.CreateInput{
		ID:          req.ID,
		Owner:       req.Owner,
		SourceRef:   req.SourceRef,
		DisplayName: req.DisplayName,
		EngineHint:  req.EngineHint,
		TraceID:     c.GetString(traceIDKey),
	})
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	f := store.Filters{Owner: c.Query("owner")}
	if s := c.Query("stage"); s != "" {
		f.Stages = []registry.Stage{registry.Stage(s)}
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	jobs, err := h.query.List(c.Request.Context(), f, limit, offset)
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, gin.H{"jobs": jobs})
}

// GetJob handles GET /api/jobs/:id.
func (h *Handlers) GetJob(c *gin.Context) {
	job, err := h.query.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, job)
}

// JobHistory handles GET /api/jobs/:id/history.
func (h *Handlers) JobHistory(c *gin.Context) {
	hist, err := h.query.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, gin.H{"history": hist})
}

type updateJobRequest struct {
	Stage    string         `json:"stage" binding:"required"`
	Bag      map[string]any `json:"bag"`
	ErrorMsg string         `json:"error"`
}

// UpdateJob handles PUT /api/jobs/:id: a worker-reported transition.
func (h *Handlers) UpdateJob(c *gin.Context) {
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	job, err := h.engine.Transition(c.Request.Context(), c.Param("id"), registry.Stage(req.Stage), req.Bag, req.ErrorMsg, engine.ActorUser)
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, job)
}

// RetryJob handles POST /api/jobs/:id/retry.
func (h *Handlers) RetryJob(c *gin.Context) {
	job, err := h.life.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, job)
}

// CancelJob handles POST /api/jobs/:id/cancel.
func (h *Handlers) CancelJob(c *gin.Context) {
	job, err := h.life.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, job)
}

// ClaimJob handles POST /api/jobs/:id/claim: a worker's attempt to win the
// right to run a job's next stage.
type claimJobRequest struct {
	FromStage string `json:"from_stage" binding:"required"`
	ToStage   string `json:"to_stage" binding:"required"`
}

func (h *Handlers) ClaimJob(c *gin.Context) {
	var req claimJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	job, err := h.claim.Claim(c.Request.Context(), c.Param("id"), registry.Stage(req.FromStage), registry.Stage(req.ToStage))
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, job)
}

// ListCandidates handles GET /api/jobs/candidates.
func (h *Handlers) ListCandidates(c *gin.Context) {
	stage := registry.Stage(c.Query("stage"))
	if stage == "" {
		respondError(c, http.StatusBadRequest, "bad_request", errors.New("stage is required"))
		return
	}
	limit := queryInt(c, "limit", 20)
	jobs, err := h.claim.ListCandidates(c.Request.Context(), stage, c.Query("engine_hint"), limit)
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, gin.H{"jobs": jobs})
}

// Stats handles GET /api/stats.
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.query.Stats(c.Request.Context())
	if err != nil {
		status, code := statusFor(err)
		respondError(c, status, code, err)
		return
	}
	respondOK(c, stats)
}

// Pause handles POST /api/pause.
func (h *Handlers) Pause(c *gin.Context) {
	if err := h.pause.Pause(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	h.metrics.SetPaused(true)
	h.publishLifecycleEvent(c, "paused")
	respondOK(c, gin.H{"paused": true})
}

// Resume handles POST /api/resume.
func (h *Handlers) Resume(c *gin.Context) {
	if err := h.pause.Resume(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	h.metrics.SetPaused(false)
	h.publishLifecycleEvent(c, "resumed")
	respondOK(c, gin.H{"paused": false})
}

// publishLifecycleEvent announces a pause/resume on system.lifecycle
// (spec.md §4.6). Best-effort: a publish failure is logged, never surfaced
// as a pause/resume failure, since the switch itself already took effect.
func (h *Handlers) publishLifecycleEvent(c *gin.Context, event string) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(c.Request.Context(), eventbus.TopicSystemLifecycle, eventbus.Event{
		Event:   event,
		At:      time.Now().UTC(),
		TraceID: c.GetString(traceIDKey),
	}); err != nil {
		h.log.Warn("system lifecycle event publish failed", "event", event, "error", err)
	}
}

// Healthcheck handles GET /healthcheck.
func (h *Handlers) Healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
