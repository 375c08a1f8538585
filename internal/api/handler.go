package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gyaneshwarpardhi/argus/internal/event"
	"github.com/gyaneshwarpardhi/argus/internal/ingest"
	"github.com/gyaneshwarpardhi/argus/internal/metrics"
	"github.com/gyaneshwarpardhi/argus/internal/repository"
)

// readyThreshold is the batch queue utilization above which /readyz fails.
const readyThreshold = 0.8

// InsertPool runs batch inserts off the request goroutine.
type InsertPool = ingest.Pool[event.Event, string]

// Options tunes request limits.
type Options struct {
	MaxBodyBytes int64
	MaxBatchSize int
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	repo repository.Repository
	rec  metrics.Recorder
	pool *InsertPool
	opts Options
	mux  *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(repo repository.Repository, rec metrics.Recorder, pool *InsertPool, opts Options) http.Handler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 100
	}
	h := &Handler{repo: repo, rec: rec, pool: pool, opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /events", h.createEvent)
	h.mux.HandleFunc("POST /events/batch", h.createBatch)
	h.mux.HandleFunc("GET /events", h.queryEvents)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", rec.Handler())

	return requestMiddleware(rec, h.mux)
}

// POST /events: store one event.
func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	ev, err := decodeSubmission(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A started insert completes even if the client goes away.
	id, err := h.repo.Insert(context.WithoutCancel(r.Context()), ev)
	if errors.Is(err, repository.ErrDuplicateID) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.storageFailure(w, r, "insert event", err)
		return
	}
	h.rec.EventCreated()
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// POST /events/batch: validate every item, then insert through the pool.
func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		writeError(w, http.StatusServiceUnavailable, "batch ingestion is disabled")
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var items []json.RawMessage
	if err := codec.Unmarshal(body, &items); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: expected an array of events: %s", err))
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(items) > h.opts.MaxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(items), h.opts.MaxBatchSize))
		return
	}

	events := make([]event.Event, len(items))
	for i, raw := range items {
		ev, err := decodeSubmission(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %d: %s", i, err))
			return
		}
		events[i] = ev
	}

	results := make([]batchItem, len(events))
	pending := make([]<-chan ingest.Result[string], len(events))
	rejected := 0
	for i, ev := range events {
		c, ok := h.pool.Submit(r.Context(), ev)
		if !ok {
			results[i] = batchItem{Status: http.StatusTooManyRequests, Error: "ingest queue full"}
			rejected++
			continue
		}
		pending[i] = c
	}

	created := 0
	for i, c := range pending {
		if c == nil {
			continue
		}
		res := <-c
		if errors.Is(res.Err, repository.ErrDuplicateID) {
			results[i] = batchItem{Status: http.StatusConflict, Error: res.Err.Error()}
			continue
		}
		if res.Err != nil {
			slog.Error("batch insert failed", "index", i, "err", res.Err)
			results[i] = batchItem{Status: http.StatusInternalServerError, Error: "failed to store event"}
			continue
		}
		h.rec.EventCreated()
		results[i] = batchItem{ID: res.Value, Status: http.StatusCreated}
		created++
	}

	status := http.StatusMultiStatus
	switch {
	case created == len(events):
		status = http.StatusCreated
	case rejected == len(events):
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, batchResponse{Total: len(events), Created: created, Items: results})
}

// GET /events: filtered lookup, sorted by timestamp then ID.
func (h *Handler) queryEvents(w http.ResponseWriter, r *http.Request) {
	q, pg, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.repo.Query(r.Context(), q)
	if err != nil {
		h.storageFailure(w, r, "query events", err)
		return
	}
	event.SortByTime(events)
	events = pg.apply(events)
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the backend cannot count or the batch queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.Count(r.Context())
	if err != nil {
		slog.Warn("readiness check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	var util float64
	if h.pool != nil {
		util = h.pool.Utilization()
	}
	if util > readyThreshold {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":            "overloaded",
			"events":            count,
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"events":            count,
		"queue_utilization": util,
	})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %s", err))
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return nil, false
	}
	return body, true
}

func (h *Handler) storageFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op+" failed", "path", r.URL.Path, "storage", errors.Is(err, repository.ErrStorage), "err", err)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}

// page is an optional window over sorted query results.
type page struct {
	limit  int // 0 means no limit
	offset int
}

func (p page) apply(events []event.Event) []event.Event {
	if p.offset >= len(events) {
		return events[:0]
	}
	events = events[p.offset:]
	if p.limit > 0 && p.limit < len(events) {
		events = events[:p.limit]
	}
	return events
}

// parseQuery builds a Query from type, start and end plus the paging
// parameters limit and offset. A present but empty type matches nothing.
func parseQuery(v url.Values) (event.Query, page, error) {
	var (
		q  event.Query
		pg page
	)
	if v.Has("type") {
		t := v.Get("type")
		q.Type = &t
	}
	for _, b := range []struct {
		name string
		dst  **time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		if !v.Has(b.name) {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v.Get(b.name))
		if err != nil {
			return q, pg, fmt.Errorf("invalid %s %q: expected RFC 3339", b.name, v.Get(b.name))
		}
		ts = ts.UTC()
		*b.dst = &ts
	}
	if err := q.Validate(); err != nil {
		return q, pg, err
	}

	var err error
	if pg.limit, err = nonNegative(v, "limit"); err != nil {
		return q, pg, err
	}
	if pg.offset, err = nonNegative(v, "offset"); err != nil {
		return q, pg, err
	}
	return q, pg, nil
}

func nonNegative(v url.Values, name string) (int, error) {
	if !v.Has(name) {
		return 0, nil
	}
	n, err := strconv.Atoi(v.Get(name))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a non-negative integer", name, v.Get(name))
	}
	return n, nil
}
