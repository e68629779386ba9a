package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/utakatalp/league-history/internal/league"
	"github.com/utakatalp/league-history/internal/pipeline"
)

// Handler serves a finished run. Nothing is recomputed per request.
type Handler struct {
	result *pipeline.Result
	logger *zap.SugaredLogger
}

func New(result *pipeline.Result, logger *zap.Logger) *Handler {
	return &Handler{result: result, logger: logger.Sugar()}
}

// Router wires every route.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/seasons", h.Seasons).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{season:[0-9]+}", h.Season).Methods(http.MethodGet)
	r.HandleFunc("/history", h.History).Methods(http.MethodGet)
	r.HandleFunc("/model", h.Model).Methods(http.MethodGet)
	r.HandleFunc("/outliers", h.Outliers).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Use(h.logRequests)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"run":     h.result.RunID.String(),
		"seasons": len(h.result.Dataset.Seasons),
	})
}

type seasonSummary struct {
	Season    int `json:"season"`
	Teams     int `json:"teams"`
	Relegated int `json:"relegated"`
	Promoted  int `json:"promoted"`
}

// Seasons lists every season with participant counts.
func (h *Handler) Seasons(w http.ResponseWriter, r *http.Request) {
	out := make([]seasonSummary, 0, len(h.result.Dataset.Seasons))
	for _, st := range h.result.Dataset.Seasons {
		s := seasonSummary{Season: st.Season, Teams: len(st.Rows)}
		for _, row := range st.Rows {
			if row.Outcome == league.Relegated {
				s.Relegated++
			}
			if row.Promoted {
				s.Promoted++
			}
		}
		out = append(out, s)
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"cutoff":  h.result.Dataset.Cutoff,
		"seasons": out,
	})
}

// Season returns one season's rows.
func (h *Handler) Season(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["season"])
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid season")
		return
	}
	st := h.result.Dataset.Season(year)
	if st == nil {
		h.errorResponse(w, http.StatusNotFound, "Season not found")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"season": st.Season,
		"cutoff": st.Cutoff,
		"rows":   st.Rows,
	})
}

// History returns the concatenated, tenure-annotated rows.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"columns": league.HistoryHeader,
		"rows":    h.result.Dataset.Rows(),
	})
}

// Model returns the feature matrix handed to the classifiers.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"columns": league.ModelHeader,
		"rows":    h.result.Model.Rows,
	})
}

func (h *Handler) Outliers(w http.ResponseWriter, r *http.Request) {
	out := h.result.Outliers
	if out == nil {
		out = []league.Outlier{}
	}
	if v := r.URL.Query().Get("variable"); v != "" {
		filtered := make([]league.Outlier, 0, len(out))
		for _, o := range out {
			if o.Variable == v {
				filtered = append(filtered, o)
			}
		}
		out = filtered
	}
	h.jsonResponse(w, http.StatusOK, out)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debugw("Request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "error", err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
