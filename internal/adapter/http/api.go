package http

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/query"
)

// QueryService answers read requests.
type QueryService interface {
	Execute(ctx context.Context, req query.Request) (query.Response, error)
	Export(ctx context.Context, code string) (domain.Station, []domain.Observation, error)
}

// StationDirectory lists stations and their deployment history.
type StationDirectory interface {
	Station(ctx context.Context, code string) (domain.Station, error)
	Stations(ctx context.Context) ([]domain.Station, error)
	Campaigns(ctx context.Context, station string) ([]domain.Campaign, error)
}

// API serves the read-only /api/v1 routes.
type API struct {
	queries  QueryService
	stations StationDirectory
	logger   *slog.Logger
}

// NewAPI creates an API.
func NewAPI(queries QueryService, stations StationDirectory, logger *slog.Logger) *API {
	return &API{queries: queries, stations: stations, logger: logger}
}

// Register mounts the API routes on r.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/query", a.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/stations", a.handleStations).Methods(http.MethodGet)
	r.HandleFunc("/stations/{sid}/campaigns", a.handleCampaigns).Methods(http.MethodGet)
	r.HandleFunc("/stations/{sid}/export", a.handleExport).Methods(http.MethodGet)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := query.ParseRequest(r.URL.Query())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := a.queries.Execute(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := a.stations.Stations(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if stations == nil {
		stations = []domain.Station{}
	}
	n := len(stations)
	writeJSON(w, http.StatusOK, query.Response{Success: true, Data: stations, Results: &n})
}

func (a *API) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeStationCode(mux.Vars(r)["sid"])
	if _, err := a.stations.Station(r.Context(), code); err != nil {
		a.writeError(w, r, fmt.Errorf("station %q: %w", code, err))
		return
	}
	campaigns, err := a.stations.Campaigns(r.Context(), code)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	n := len(campaigns)
	writeJSON(w, http.StatusOK, query.Response{Success: true, Data: campaigns, Results: &n})
}

// handleExport streams a station's full history as CSV.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	st, obs, err := a.queries.Export(r.Context(), mux.Vars(r)["sid"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", st.Code+".csv"))
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.ExportHeader(st)); err != nil {
		a.logger.Warn("export write failed", "site", st.Code, "error", err)
		return
	}
	for _, o := range obs {
		if err := cw.Write(domain.ExportRow(o, st)); err != nil {
			a.logger.Warn("export write failed", "site", st.Code, "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		a.logger.Warn("export flush failed", "site", st.Code, "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	} else {
		a.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}

func statusFor(err error) int {
	switch query.Outcome(err) {
	case "bad_request":
		return http.StatusBadRequest
	case "throttled":
		return http.StatusTooManyRequests
	case "not_implemented":
		return http.StatusNotImplemented
	case "not_found":
		return http.StatusNotFound
	case "unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
