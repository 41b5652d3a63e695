package aggregate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
)

type fakeClient struct {
	calls atomic.Int32
	fn    func(params url.Values) (*glpi.Response, error)
}

func (f *fakeClient) Do(_ context.Context, _, path string, params url.Values, _ map[string]string) (*glpi.Response, error) {
	f.calls.Add(1)
	if path != "/search/Ticket" {
		return nil, glpi.NewError(glpi.KindInvalidArgument, "unexpected path "+path)
	}
	return f.fn(params)
}

type staticRegistry struct{}

func (staticRegistry) FieldIDs(context.Context) glpi.FieldIDs { return glpi.DefaultFieldIDs() }

func rowsResponse(rows []map[string]any) *glpi.Response {
	body, _ := json.Marshal(map[string]any{"data": rows})
	return &glpi.Response{Status: http.StatusOK, Header: http.Header{}, Body: body}
}

func countResponse(total string) *glpi.Response {
	h := http.Header{}
	h.Set("Content-Range", "items 0-0/"+total)
	return &glpi.Response{Status: http.StatusPartialContent, Header: h, Body: []byte(`{"data":[]}`)}
}

func newTestEngine(client glpi.Doer) *Engine {
	return NewEngine(client, staticRegistry{}, Config{
		PageSize:    100,
		MaxRecords:  1000,
		BackoffUnit: time.Millisecond,
	}, nil, nil)
}

func TestEngine_CountsByLevel(t *testing.T) {
	levels := models.AllLevels()
	statuses := models.AllStatuses()

	t.Run("fast path classifies rows locally", func(t *testing.T) {
		client := &fakeClient{fn: func(_ url.Values) (*glpi.Response, error) {
			return rowsResponse([]map[string]any{
				{"8": "Central TI > N1 - Service Desk", "12": float64(1)},
				{"8": "Central TI > N1 - Service Desk", "12": float64(1)},
				{"8": "Central TI > N2 - Suporte", "12": "4"},
				{"8": "Central TI > N3 - Infra", "12": float64(5)},
				{"8": "Central TI > Diretoria", "12": float64(1)},    // no marker: skipped
				{"8": "Central TI > N4 - Arquitetura", "12": "bad"}, // bad status: skipped
			}), nil
		}}

		grid, err := newTestEngine(client).CountsByLevel(context.Background(), levels, statuses, "", "")
		require.NoError(t, err)

		assert.Equal(t, 2, grid[models.LevelN1][models.StatusNew])
		assert.Equal(t, 1, grid[models.LevelN2][models.StatusPending])
		assert.Equal(t, 1, grid[models.LevelN3][models.StatusSolved])
		assert.Equal(t, 0, grid[models.LevelN4].Total())
		assert.Equal(t, int32(1), client.calls.Load())
	})

	t.Run("short page ends pagination", func(t *testing.T) {
		pages := 0
		client := &fakeClient{}
		client.fn = func(params url.Values) (*glpi.Response, error) {
			pages++
			if params.Get("range") == "0-99" {
				rows := make([]map[string]any, 100)
				for i := range rows {
					rows[i] = map[string]any{"8": "N1", "12": float64(1)}
				}
				return rowsResponse(rows), nil
			}
			return rowsResponse([]map[string]any{{"8": "N1", "12": float64(2)}}), nil
		}

		grid, err := newTestEngine(client).CountsByLevel(context.Background(), levels, statuses, "", "")
		require.NoError(t, err)
		assert.Equal(t, 2, pages)
		assert.Equal(t, 100, grid[models.LevelN1][models.StatusNew])
		assert.Equal(t, 1, grid[models.LevelN1][models.StatusAssigned])
	})

	t.Run("all-zero fast path falls back to per-cell counts", func(t *testing.T) {
		client := &fakeClient{}
		client.fn = func(params url.Values) (*glpi.Response, error) {
			if params.Get("range") == "0-0" {
				// Per-cell count: N1/new answers 7, everything else 0.
				if params.Get("criteria[0][value]") == "N1" && params.Get("criteria[1][value]") == "1" {
					return countResponse("7"), nil
				}
				return countResponse("0"), nil
			}
			return rowsResponse(nil), nil // fast path sees nothing
		}

		grid, err := newTestEngine(client).CountsByLevel(context.Background(), levels, statuses, "", "")
		require.NoError(t, err)
		assert.Equal(t, 7, grid[models.LevelN1][models.StatusNew])
		assert.Equal(t, 7, grid[models.LevelN1].Total())
		// 1 fast-path page + 24 cells.
		assert.Equal(t, int32(25), client.calls.Load())
	})

	t.Run("fast path error falls back instead of failing", func(t *testing.T) {
		client := &fakeClient{}
		client.fn = func(params url.Values) (*glpi.Response, error) {
			if params.Get("range") == "0-0" {
				return countResponse("3"), nil
			}
			return nil, glpi.NewError(glpi.KindTimeout, "slow GLPI")
		}

		e := NewEngine(client, staticRegistry{}, Config{
			PageSize: 100, MaxRecords: 1000, MaxPageRetries: 1, BackoffUnit: time.Millisecond,
		}, nil, nil)

		grid, err := e.CountsByLevel(context.Background(), levels, statuses, "", "")
		require.NoError(t, err)
		assert.Equal(t, 3, grid[models.LevelN2][models.StatusClosed])
	})

	t.Run("individual cell failures stay zero", func(t *testing.T) {
		client := &fakeClient{}
		client.fn = func(params url.Values) (*glpi.Response, error) {
			if params.Get("range") == "0-0" {
				if params.Get("criteria[0][value]") == "N1" {
					return nil, glpi.NewError(glpi.KindTimeout, "cell timeout")
				}
				return countResponse("2"), nil
			}
			return rowsResponse(nil), nil
		}

		grid, err := newTestEngine(client).CountsByLevel(context.Background(), levels, statuses, "", "")
		require.NoError(t, err)
		assert.Equal(t, 0, grid[models.LevelN1].Total())
		assert.Equal(t, 12, grid[models.LevelN2].Total())
	})

	t.Run("malformed dates are a caller error, not a fallback", func(t *testing.T) {
		client := &fakeClient{fn: func(url.Values) (*glpi.Response, error) {
			t.Fatal("no request expected")
			return nil, nil
		}}

		_, err := newTestEngine(client).CountsByLevel(context.Background(), levels, statuses, "01/03/2025", "")
		require.Error(t, err)
		assert.True(t, glpi.IsKind(err, glpi.KindInvalidArgument))
		assert.Equal(t, int32(0), client.calls.Load())
	})

	t.Run("date window lands on the date_mod field", func(t *testing.T) {
		var fastParams url.Values
		client := &fakeClient{}
		client.fn = func(params url.Values) (*glpi.Response, error) {
			if params.Get("range") != "0-0" {
				fastParams = params
				return rowsResponse([]map[string]any{{"8": "N1", "12": float64(1)}}), nil
			}
			return countResponse("0"), nil
		}

		_, err := newTestEngine(client).CountsByLevel(context.Background(), levels, statuses, "2025-03-01", "2025-03-31")
		require.NoError(t, err)

		// 4 level criteria + 6 status criteria precede the date pair.
		assert.Equal(t, "19", fastParams.Get("criteria[10][field]"))
		assert.Equal(t, "morethan", fastParams.Get("criteria[10][searchtype]"))
		assert.Equal(t, "2025-03-01 00:00:00", fastParams.Get("criteria[10][value]"))
		assert.Equal(t, "2025-03-31 23:59:59", fastParams.Get("criteria[11][value]"))
	})

	t.Run("safety stop caps processed records", func(t *testing.T) {
		client := &fakeClient{}
		client.fn = func(params url.Values) (*glpi.Response, error) {
			rows := make([]map[string]any, 100)
			for i := range rows {
				rows[i] = map[string]any{"8": "N1", "12": float64(1)}
			}
			return rowsResponse(rows), nil
		}

		e := NewEngine(client, staticRegistry{}, Config{
			PageSize: 100, MaxRecords: 300, BackoffUnit: time.Millisecond,
		}, nil, nil)

		grid, err := e.CountsByLevel(context.Background(), models.AllLevels(), models.AllStatuses(), "", "")
		require.NoError(t, err)
		assert.Equal(t, 300, grid[models.LevelN1][models.StatusNew])
		assert.Equal(t, int32(3), client.calls.Load())
	})
}
