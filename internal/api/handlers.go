package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/flightdev/internal/config"
	"github.com/yegors/flightdev/internal/deviation"
	"github.com/yegors/flightdev/internal/storage/sqlite"
	"github.com/yegors/flightdev/pkg/logger"
)

// Store is the read side of the result database
type Store interface {
	Ping(ctx context.Context) error
	CountFlights(ctx context.Context) (int, error)
	ListRuns(ctx context.Context, limit int) ([]sqlite.Run, error)
	GetRun(ctx context.Context, runID string) (*sqlite.Run, error)
	GetDeviations(ctx context.Context, q sqlite.DeviationQuery) ([]deviation.Record, error)
	GetSkipped(ctx context.Context, runID string) ([]sqlite.SkippedHoleRow, error)
	GetFailures(ctx context.Context, runID string) ([]sqlite.FailureRow, error)
}

// Handler contains the API handlers
type Handler struct {
	store  Store
	config *config.Config
	logger *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(store Store, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		config: config,
		logger: logger.Named("api-handler"),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("Database ping failed", logger.Error(err))
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC(),
	}
	if code == http.StatusOK {
		if n, err := h.store.CountFlights(r.Context()); err == nil {
			response["flight_count"] = n
		}
	}

	WriteJSON(w, code, response)
}

// GetConfig returns the analysis parameters in effect
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	a := h.config.Analysis
	publicConfig := map[string]interface{}{
		"analysis": map[string]interface{}{
			"margin_fl":                      a.MarginFL,
			"angle_precision":                a.AnglePrecision,
			"min_distance_nm":                a.MinDistanceNM,
			"forward_time_minutes":           a.ForwardTimeMinutes,
			"min_hole_duration_seconds":      a.MinHoleDurationSeconds,
			"min_neighbour_duration_seconds": a.MinNeighbourDurationSeconds,
			"workers":                        a.Workers,
		},
		"storage": map[string]interface{}{
			"type": h.config.Storage.Type,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetRuns returns the most recent analysis runs
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", logger.Error(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRun returns a single run
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// GetRunDeviations returns the deviation records of a run in batch order
func (h *Handler) GetRunDeviations(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.store.GetDeviations(r.Context(), sqlite.DeviationQuery{
		RunID:    run.ID,
		FlightID: r.URL.Query().Get("flight_id"),
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error("Failed to get deviations", logger.String("run_id", run.ID), logger.Error(err))
		http.Error(w, "Failed to get deviations", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     run.ID,
		"count":      len(records),
		"deviations": records,
	})
}

// GetRunSkipped returns the holes a run examined but did not score
func (h *Handler) GetRunSkipped(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	skipped, err := h.store.GetSkipped(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("Failed to get skipped holes", logger.String("run_id", run.ID), logger.Error(err))
		http.Error(w, "Failed to get skipped holes", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  run.ID,
		"count":   len(skipped),
		"skipped": skipped,
	})
}

// GetRunFailures returns the flights a run could not analyse
func (h *Handler) GetRunFailures(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	failures, err := h.store.GetFailures(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("Failed to get flight failures", logger.String("run_id", run.ID), logger.Error(err))
		http.Error(w, "Failed to get flight failures", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   run.ID,
		"count":    len(failures),
		"failures": failures,
	})
}

// GetFlightDeviations returns every stored record of one flight across runs
func (h *Handler) GetFlightDeviations(w http.ResponseWriter, r *http.Request) {
	flightID := chi.URLParam(r, "flightID")
	if flightID == "" {
		http.Error(w, "Missing flight ID", http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.store.GetDeviations(r.Context(), sqlite.DeviationQuery{FlightID: flightID, Limit: limit})
	if err != nil {
		h.logger.Error("Failed to get deviations", logger.String("flight_id", flightID), logger.Error(err))
		http.Error(w, "Failed to get deviations", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"flight_id":  flightID,
		"count":      len(records),
		"deviations": records,
	})
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (*sqlite.Run, bool) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		http.Error(w, "Missing run ID", http.StatusBadRequest)
		return nil, false
	}

	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to get run", logger.String("run_id", runID), logger.Error(err))
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
