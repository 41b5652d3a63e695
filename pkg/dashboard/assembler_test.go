package dashboard

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
)

type fakeClient struct {
	calls atomic.Int32
	fn    func(params url.Values) (*glpi.Response, error)
}

func (f *fakeClient) Do(_ context.Context, _, _ string, params url.Values, _ map[string]string) (*glpi.Response, error) {
	f.calls.Add(1)
	return f.fn(params)
}

type staticRegistry struct{}

func (staticRegistry) FieldIDs(context.Context) glpi.FieldIDs { return glpi.DefaultFieldIDs() }

type fakeAggregator struct {
	calls atomic.Int32
	grid  map[models.SupportLevel]models.StatusCounts
	err   error
}

func (f *fakeAggregator) CountsByLevel(_ context.Context, levels []models.SupportLevel, _ []models.TicketStatus, _, _ string) (map[models.SupportLevel]models.StatusCounts, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.grid, nil
}

type pathClient struct {
	fn func(path string, params url.Values) (*glpi.Response, error)
}

func (p *pathClient) Do(_ context.Context, _, path string, params url.Values, _ map[string]string) (*glpi.Response, error) {
	return p.fn(path, params)
}

func countResponse(total string) *glpi.Response {
	h := make(map[string][]string)
	h["Content-Range"] = []string{"items 0-0/" + total}
	return &glpi.Response{Status: 206, Header: h, Body: []byte(`{"data":[]}`)}
}

func levelGrid() map[models.SupportLevel]models.StatusCounts {
	grid := make(map[models.SupportLevel]models.StatusCounts)
	for _, l := range models.AllLevels() {
		grid[l] = models.NewStatusCounts()
	}
	grid[models.LevelN1][models.StatusNew] = 3
	grid[models.LevelN2][models.StatusSolved] = 2
	return grid
}

func newTestAssembler(client glpi.Doer, agg Aggregator, store *cache.Store) *Assembler {
	return NewAssembler(client, staticRegistry{}, agg, store, Config{
		CacheTTL: time.Minute,
	}, nil, nil)
}

func TestAssembler_Dashboard(t *testing.T) {
	t.Run("assembles general totals, levels and trends", func(t *testing.T) {
		client := &fakeClient{fn: func(params url.Values) (*glpi.Response, error) {
			// Status 1 counts 5, every other cell 1.
			if params.Get("criteria[0][value]") == "1" && params.Get("criteria[1][field]") == "" {
				return countResponse("5"), nil
			}
			return countResponse("1"), nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}

		snapshot, err := newTestAssembler(client, agg, cache.NewStore()).Dashboard(context.Background(), "", "")
		require.NoError(t, err)

		assert.Equal(t, 3, snapshot.Niveis[models.LevelN1].Novos)
		assert.Equal(t, 2, snapshot.Niveis[models.LevelN2].Resolvidos)
		assert.Nil(t, snapshot.FiltersApplied)
		assert.False(t, snapshot.Timestamp.IsZero())
		assert.Equal(t, time.UTC, snapshot.Timestamp.Location())
	})

	t.Run("cached snapshot is returned as the identical value", func(t *testing.T) {
		client := &fakeClient{fn: func(url.Values) (*glpi.Response, error) {
			return countResponse("1"), nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}
		a := newTestAssembler(client, agg, cache.NewStore())

		first, err := a.Dashboard(context.Background(), "", "")
		require.NoError(t, err)
		second, err := a.Dashboard(context.Background(), "", "")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), agg.calls.Load())
	})

	t.Run("filtered window gets its own cache key and echo", func(t *testing.T) {
		client := &fakeClient{fn: func(url.Values) (*glpi.Response, error) {
			return countResponse("1"), nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}
		a := newTestAssembler(client, agg, cache.NewStore())

		unfiltered, err := a.Dashboard(context.Background(), "", "")
		require.NoError(t, err)
		filtered, err := a.Dashboard(context.Background(), "2025-03-01", "2025-03-31")
		require.NoError(t, err)

		assert.NotSame(t, unfiltered, filtered)
		require.NotNil(t, filtered.FiltersApplied)
		assert.Equal(t, "2025-03-01", filtered.FiltersApplied.DataInicio)
		assert.Equal(t, "2025-03-31", filtered.FiltersApplied.DataFim)
		assert.Equal(t, int32(2), agg.calls.Load())
	})

	t.Run("malformed dates rejected before any work", func(t *testing.T) {
		client := &fakeClient{fn: func(url.Values) (*glpi.Response, error) {
			t.Fatal("no request expected")
			return nil, nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}

		_, err := newTestAssembler(client, agg, cache.NewStore()).Dashboard(context.Background(), "03-01-2025", "")
		require.Error(t, err)
		assert.True(t, glpi.IsKind(err, glpi.KindInvalidArgument))
		assert.Equal(t, int32(0), agg.calls.Load())
	})

	t.Run("per-status count failures degrade to zero", func(t *testing.T) {
		client := &fakeClient{fn: func(params url.Values) (*glpi.Response, error) {
			if params.Get("criteria[0][value]") == "1" {
				return nil, glpi.NewError(glpi.KindTimeout, "slow")
			}
			return countResponse("2"), nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}

		snapshot, err := newTestAssembler(client, agg, cache.NewStore()).Dashboard(context.Background(), "", "")
		require.NoError(t, err)
		assert.Equal(t, 0, snapshot.Novos)
		assert.Equal(t, 4, snapshot.Progresso)
	})

	t.Run("aggregator failure fails the snapshot", func(t *testing.T) {
		client := &fakeClient{fn: func(url.Values) (*glpi.Response, error) {
			return countResponse("1"), nil
		}}
		agg := &fakeAggregator{err: glpi.NewError(glpi.KindConnection, "down")}

		_, err := newTestAssembler(client, agg, cache.NewStore()).Dashboard(context.Background(), "", "")
		require.Error(t, err)
	})

	t.Run("per-level technician counts come from group membership", func(t *testing.T) {
		client := &pathClient{fn: func(path string, params url.Values) (*glpi.Response, error) {
			if path == "/search/Group_User" {
				switch params.Get("criteria[0][value]") {
				case "89":
					return countResponse("4"), nil
				case "90":
					return countResponse("2"), nil
				case "91":
					return nil, glpi.NewError(glpi.KindTimeout, "slow")
				}
				return countResponse("0"), nil
			}
			return countResponse("1"), nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}

		snapshot, err := newTestAssembler(client, agg, cache.NewStore()).Dashboard(context.Background(), "", "")
		require.NoError(t, err)

		assert.Equal(t, 4, snapshot.Niveis[models.LevelN1].TechnicianCount)
		assert.Equal(t, 2, snapshot.Niveis[models.LevelN2].TechnicianCount)
		// A failed membership count degrades to zero.
		assert.Equal(t, 0, snapshot.Niveis[models.LevelN3].TechnicianCount)
	})

	t.Run("general totals filter on the creation-date field", func(t *testing.T) {
		var sawField string
		client := &fakeClient{fn: func(params url.Values) (*glpi.Response, error) {
			if f := params.Get("criteria[1][field]"); f != "" && sawField == "" {
				sawField = f
			}
			return countResponse("1"), nil
		}}
		agg := &fakeAggregator{grid: levelGrid()}

		_, err := newTestAssembler(client, agg, cache.NewStore()).Dashboard(context.Background(), "2025-03-01", "2025-03-31")
		require.NoError(t, err)
		assert.Equal(t, "15", sawField)
	})
}
