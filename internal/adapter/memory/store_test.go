package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

var base = time.Date(2017, 6, 15, 0, 0, 0, 0, time.UTC)

func obsAt(station string, offset time.Duration) domain.Observation {
	return domain.Observation{Station: station, Datetime: base.Add(offset)}
}

func TestObservationStore_SaveGetConflict(t *testing.T) {
	ctx := context.Background()
	s := NewObservationStore()

	saved, err := s.Save(ctx, obsAt("Ablato1", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	assert.Equal(t, "ablato1", saved.Station)

	_, err = s.Save(ctx, obsAt("ablato1", time.Hour))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, s.Len("ablato1"))

	got, err := s.Get(ctx, "ABLATO1", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	_, err = s.Get(ctx, "ablato1", base)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObservationStore_FilterOrderedAndLatest(t *testing.T) {
	ctx := context.Background()
	s := NewObservationStore()

	_, err := s.Latest(ctx, "ablato1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, h := range []int{5, 1, 3, 2, 4} {
		_, err := s.Save(ctx, obsAt("ablato1", time.Duration(h)*time.Hour))
		require.NoError(t, err)
	}
	_, err = s.Save(ctx, obsAt("other", 3*time.Hour))
	require.NoError(t, err)

	got, err := s.Filter(ctx, "ablato1", domain.TimeRange{Begin: base.Add(2 * time.Hour), End: base.Add(4 * time.Hour)}, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, o := range got {
		assert.Equal(t, base.Add(time.Duration(i+2)*time.Hour), o.Datetime)
	}

	odd := func(o *domain.Observation) bool { return o.Datetime.Hour()%2 == 1 }
	got, err = s.Filter(ctx, "ablato1", domain.TimeRange{}, odd)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	latest, err := s.Latest(ctx, "ablato1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(5*time.Hour), latest.Datetime)
}

func TestStationRepository(t *testing.T) {
	ctx := context.Background()
	r := NewStationRepository(domain.Station{Code: "Ablato2"}, domain.Station{Code: "ablato1"})

	st, err := r.Station(ctx, "ABLATO2")
	require.NoError(t, err)
	assert.Equal(t, "ablato2", st.Code)

	_, err = r.Station(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := r.Stations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ablato1", all[0].Code)

	_, err = r.SaveCampaign(ctx, domain.Campaign{Station: "ablato1", Season: 2017})
	require.NoError(t, err)
	_, err = r.SaveCampaign(ctx, domain.Campaign{Station: "ABLATO1", Season: 2017})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = r.SaveCampaign(ctx, domain.Campaign{Station: "ablato1", Season: 2016})
	require.NoError(t, err)

	campaigns, err := r.Campaigns(ctx, "ablato1")
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, 2016, campaigns[0].Season)

	_, err = r.SaveSiteVisit(ctx, domain.SiteVisit{Station: "ablato1", Visited: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = r.SaveSiteVisit(ctx, domain.SiteVisit{Station: "ablato1", Visited: base})
	require.NoError(t, err)
	visits, err := r.SiteVisits(ctx, "ablato1")
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, base, visits[0].Visited)
}
