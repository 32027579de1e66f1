package http_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/glacier-telemetry/internal/adapter/http"
	"github.com/couchcryptid/glacier-telemetry/internal/adapter/memory"
	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
	"github.com/couchcryptid/glacier-telemetry/internal/query"
)

var t0 = time.Date(2017, 6, 15, 0, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Results *int            `json:"results"`
	Error   string          `json:"error"`
}

// failingStore reports every read as a transient failure.
type failingStore struct {
	*memory.ObservationStore
}

func (failingStore) Filter(context.Context, string, domain.TimeRange, domain.Predicate) ([]domain.Observation, error) {
	return nil, &domain.TransientStoreError{Op: "filter", Err: context.DeadlineExceeded}
}

func newAPIServer(t *testing.T, store domain.ObservationStore) *httpadapter.Server {
	t.Helper()
	stations := memory.NewStationRepository(
		domain.Station{Code: "ablato1", Operational: true, Capabilities: []domain.Capability{domain.CapabilityElevation}},
		domain.Station{Code: "ablato2"},
	)
	_, err := stations.SaveCampaign(context.Background(), domain.Campaign{Station: "ablato1", Season: 2017, Deployment: t0})
	require.NoError(t, err)

	svc := query.NewService(store, stations, query.NewMemoryCache(10, nil), time.Minute, discardLogger(), observability.NewMetricsForTesting())
	return httpadapter.NewServer(":0", httpadapter.NewAPI(svc, stations, discardLogger()), &mockReadiness{}, discardLogger())
}

func seededStore(t *testing.T, n int) *memory.ObservationStore {
	t.Helper()
	store := memory.NewObservationStore()
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * time.Hour)
		elev := 850.0
		_, err := store.Save(context.Background(), domain.Observation{
			Station: "ablato1", Valid: true, Sats: 6,
			Date: domain.DateOf(at), Time: domain.TimeOf(at), Datetime: at,
			Lat: 60.7, Lng: -146.87, Point: domain.PointOf(-146.87, 60.7), Elev: &elev,
			GPSValid: true, RangeValid: true, RangeCM: float64(100 + i), Volts: 12.8,
		})
		require.NoError(t, err)
	}
	return store
}

func get(t *testing.T, srv http.Handler, path string, params url.Values) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	target := path
	if params != nil {
		target += "?" + params.Encode()
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestQuery_TimeRange(t *testing.T) {
	srv := newAPIServer(t, seededStore(t, 30))

	rec, env := get(t, srv, "/api/v1/query", url.Values{
		"request": {"time-range-query"},
		"sid":     {"ABLATO1"},
		"begin":   {"2017-06-15"},
		"end":     {"2017-06-15"},
		"filter":  {`[{"type":"numeric","field":"range_cm","value":110,"comparison":"gte"}]`},
		"fields":  {`["datetime","range_cm"]`},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Results)
	assert.Equal(t, 14, *env.Results)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Len(t, rows[0], 2)
	assert.Equal(t, 110.0, rows[0]["range_cm"])
}

func TestQuery_AvailableDates(t *testing.T) {
	srv := newAPIServer(t, seededStore(t, 30))
	rec, env := get(t, srv, "/api/v1/query", url.Values{"request": {"list-available-dates"}, "sid": {"ablato1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["2017-06-15","2017-06-16"]`, string(env.Data))
}

func TestQuery_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		store  domain.ObservationStore
		params url.Values
		status int
	}{
		{"missing request", nil, url.Values{"sid": {"ablato1"}}, http.StatusBadRequest},
		{"malformed filter", nil, url.Values{"request": {"time-range-query"}, "sid": {"ablato1"}, "filter": {"[{"}}, http.StatusBadRequest},
		{"too many sorts", nil, url.Values{"request": {"time-range-query"}, "sid": {"ablato1"},
			"sort": {`[{"field":"sats"},{"field":"sats"},{"field":"sats"},{"field":"sats"}]`}}, http.StatusTooManyRequests},
		{"unsupported kind", nil, url.Values{"request": {"histogram"}, "sid": {"ablato1"}}, http.StatusNotImplemented},
		{"unknown station", nil, url.Values{"request": {"list-available-dates"}, "sid": {"nowhere"}}, http.StatusNotFound},
		{"store unavailable", failingStore{memory.NewObservationStore()},
			url.Values{"request": {"time-range-query"}, "sid": {"ablato1"}, "begin": {"2017-06-15"}, "end": {"2017-06-15"}},
			http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = memory.NewObservationStore()
			}
			rec, env := get(t, newAPIServer(t, store), "/api/v1/query", tt.params)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestStations(t *testing.T) {
	srv := newAPIServer(t, memory.NewObservationStore())
	rec, env := get(t, srv, "/api/v1/stations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *env.Results)

	var stations []domain.Station
	require.NoError(t, json.Unmarshal(env.Data, &stations))
	assert.Equal(t, "ablato1", stations[0].Code)
}

func TestCampaigns(t *testing.T) {
	srv := newAPIServer(t, memory.NewObservationStore())

	rec, env := get(t, srv, "/api/v1/stations/Ablato1/campaigns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *env.Results)

	rec, env = get(t, srv, "/api/v1/stations/ablato2/campaigns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, _ = get(t, srv, "/api/v1/stations/nowhere/campaigns", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	srv := newAPIServer(t, seededStore(t, 3))

	rec, _ := get(t, srv, "/api/v1/stations/ablato1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="ablato1.csv"`)

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Elevation", records[0][7])
	assert.Equal(t, "2017-06-15 01:00:00", records[2][4])

	rec, _ = get(t, srv, "/api/v1/stations/nowhere/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
