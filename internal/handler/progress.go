package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/plan"
	"github.com/bethesda/readingplan/internal/progress"
	"github.com/bethesda/readingplan/internal/store"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

// CalendarFunc returns the plan calendar in effect at now.
type CalendarFunc func(now time.Time) plan.Calendar

// ProgressHandler serves the dashboard: plan entries, derived progress and
// mark/unmark through each user's reconciliation engine.
type ProgressHandler struct {
	records  *store.ProgressStore
	registry *progress.Registry
	catalog  *plan.Catalog
	calendar CalendarFunc
	hub      *ws.Hub
	now      func() time.Time
	logger   *slog.Logger
}

func NewProgressHandler(
	records *store.ProgressStore,
	registry *progress.Registry,
	catalog *plan.Catalog,
	calendar CalendarFunc,
	hub *ws.Hub,
	now func() time.Time,
	logger *slog.Logger,
) *ProgressHandler {
	if now == nil {
		now = time.Now
	}
	return &ProgressHandler{
		records:  records,
		registry: registry,
		catalog:  catalog,
		calendar: calendar,
		hub:      hub,
		now:      now,
		logger:   logger,
	}
}

// engine returns the caller's engine, loading it on first use. If that
// first load fails the engine is discarded and a 503 carrying the
// notification is written; callers return when ok is false.
func (h *ProgressHandler) engine(w http.ResponseWriter, r *http.Request) (*progress.Engine, bool) {
	userID := auth.UserID(r.Context())
	e, created := h.registry.Get(userID, func() *progress.Engine {
		return progress.NewEngine(h.records, requestIdentity{},
			progress.WithCalendar(h.calendar(h.now())),
			progress.WithClock(h.now),
			progress.WithLogger(h.logger.With("user_id", userID)),
		)
	})
	if !created {
		return e, true
	}
	if res := e.Load(r.Context()); res.Outcome == progress.OutcomeFailed {
		h.registry.Remove(userID)
		h.respond(w, e, res)
		return nil, false
	}
	return e, true
}

type planEntry struct {
	plan.DayEntry
	Completed bool `json:"completed"`
}

// Plan lists catalog entries, optionally only one month's or only the
// missed days.
func (h *ProgressHandler) Plan(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var entries []plan.DayEntry
	switch {
	case q.Get("missed") == "1" || q.Get("missed") == "true":
		entries = h.catalog.Filter(e.MissedDays())
	case q.Get("month") != "":
		m, err := strconv.Atoi(q.Get("month"))
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
			return
		}
		entries = h.catalog.Month(time.Month(m))
	default:
		entries = h.catalog.All()
	}

	state := e.State()
	out := make([]planEntry, len(entries))
	for i, entry := range entries {
		out[i] = planEntry{DayEntry: entry, Completed: state.Has(entry.DayNumber)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_day": e.CurrentDay(),
		"entries":     out,
	})
}

func (h *ProgressHandler) Stats(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

type progressResponse struct {
	progress.Result
	Stats progress.Stats `json:"stats"`
}

func (h *ProgressHandler) respond(w http.ResponseWriter, e *progress.Engine, res progress.Result) {
	status := http.StatusOK
	switch res.Outcome {
	case progress.OutcomeRolledBack, progress.OutcomeFailed:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, progressResponse{Result: res, Stats: e.Snapshot()})
}

func (h *ProgressHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.respond(w, e, e.Load(r.Context()))
}

func (h *ProgressHandler) Mark(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r)
	if err != nil {
		dayParamError(w, err)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	res := e.MarkComplete(r.Context(), day)
	if res.Outcome == progress.OutcomeApplied {
		h.broadcast(r, "marked", day, e.CompletedCount())
	}
	h.respond(w, e, res)
}

func (h *ProgressHandler) Unmark(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r)
	if err != nil {
		dayParamError(w, err)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	res := e.MarkIncomplete(r.Context(), day)
	if res.Outcome == progress.OutcomeApplied {
		h.broadcast(r, "unmarked", day, e.CompletedCount())
	}
	h.respond(w, e, res)
}

// broadcast tells the user's other connections that a day changed.
func (h *ProgressHandler) broadcast(r *http.Request, action string, day, completed int) {
	userID := auth.UserID(r.Context())
	h.hub.SendToUser(userID, ws.NewMessage("progress", action, userID, day, map[string]any{
		"completed_count": completed,
	}))
}
