package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"forky/internal/config"
	"forky/internal/emt"
	"forky/internal/reader"
	"forky/internal/storage"
	"forky/internal/syncer"
)

// newEMTStub fakes the EMT API: login accepts a@b.com/x, the stop list
// and arrivals endpoints require the issued token.
func newEMTStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/user/login/"):
			if r.Header.Get("email") != "a@b.com" || r.Header.Get("password") != "x" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"accessToken": "T1"}},
			})
		case strings.HasSuffix(r.URL.Path, "/stops/list/"):
			if r.Header.Get("accessToken") != "T1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"code":"00","description":"OK","data":[
				{"node":"1","name":"Gran Via","wifi":"0","lines":["1"],
				 "geometry":{"type":"Point","coordinates":[-3.70,40.41]}},
				{"node":"2","name":"Sol","wifi":"0","lines":["3"],
				 "geometry":{"type":"Point","coordinates":[-3.71,40.42]}}
			]}`))
		case strings.HasSuffix(r.URL.Path, "/arrives/"):
			if r.Header.Get("accessToken") != "T1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"code":"00","description":"OK","datetime":"2026-08-29T10:00:00",
				"data":[{"Arrive":[
					{"line":"27","stop":"1","isHead":"False","destination":"Plaza Castilla",
					 "estimateArrive":"45","DistanceBus":320}
				]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

type testApp struct {
	db     *storage.DB
	engine *syncer.Engine
	api    *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	emtStub := newEMTStub(t)
	t.Cleanup(emtStub.Close)

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{Port: 0, PageSize: 10, SearchLimit: 10}
	client := emt.NewClient(emtStub.URL, 5*time.Second, logger)
	engine := syncer.New(db, db, client, logger)
	rd := reader.New(db, cfg.PageSize)
	engine.OnSyncComplete(rd.Reset)

	srv := New(context.Background(), cfg, db, client, engine, rd, logger)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &testApp{db: db, engine: engine, api: api}
}

func (a *testApp) getJSON(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(a.api.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (a *testApp) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(a.api.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestAPI_LoginStoresToken(t *testing.T) {
	app := newTestApp(t)

	resp := app.postJSON(t, "/api/login", `{"email":"a@b.com","password":"x"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	token, err := app.db.GetToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Equal(t, "T1", token.AccessToken)
}

func TestAPI_LoginBadCredentials(t *testing.T) {
	app := newTestApp(t)

	resp := app.postJSON(t, "/api/login", `{"email":"a@b.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := app.db.GetToken(context.Background())
	require.NoError(t, err)
	require.Nil(t, token)
}

func TestAPI_LoginMissingFields(t *testing.T) {
	app := newTestApp(t)

	resp := app.postJSON(t, "/api/login", `{"email":"a@b.com"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SyncThenRead(t *testing.T) {
	app := newTestApp(t)

	resp := app.postJSON(t, "/api/login", `{"email":"a@b.com","password":"x"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = app.postJSON(t, "/api/sync", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The sync runs in the background; wait for it to land.
	require.Eventually(t, func() bool {
		return app.engine.Status().StopCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	var page struct {
		Stops []storage.Stop `json:"stops"`
		Count int            `json:"count"`
	}
	resp = app.getJSON(t, "/api/stops?limit=1&offset=0", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, page.Count)
	require.Equal(t, "1", page.Stops[0].ID)

	resp = app.getJSON(t, "/api/stops?limit=1&offset=1", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "2", page.Stops[0].ID)
}

func TestAPI_Search(t *testing.T) {
	app := newTestApp(t)

	_, err := app.db.UpsertStops(context.Background(), []storage.Stop{
		{ID: "1", Name: "Gran Via", Lines: []string{"1"}},
		{ID: "2", Name: "Sol", Lines: []string{"3"}},
	})
	require.NoError(t, err)

	var page struct {
		Stops []storage.Stop `json:"stops"`
	}
	resp := app.getJSON(t, "/api/stops/search?q=Gran", &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Stops, 1)
	require.Equal(t, "1", page.Stops[0].ID)
}

func TestAPI_StatusInitiallyIdle(t *testing.T) {
	app := newTestApp(t)

	var status struct {
		State     string `json:"state"`
		StopCount int    `json:"stopCount"`
	}
	resp := app.getJSON(t, "/api/status", &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "idle", status.State)
	require.Zero(t, status.StopCount)
}

func TestAPI_ArrivalsRequiresToken(t *testing.T) {
	app := newTestApp(t)

	resp := app.getJSON(t, "/api/stops/1/arrivals", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Arrivals(t *testing.T) {
	app := newTestApp(t)

	resp := app.postJSON(t, "/api/login", `{"email":"a@b.com","password":"x"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var out struct {
		Stop     string `json:"stop"`
		Arrivals []struct {
			Line            string `json:"line"`
			EstimateSeconds int    `json:"estimateSeconds"`
			EstimateText    string `json:"estimateText"`
			DistanceMeters  int    `json:"distanceMeters"`
		} `json:"arrivals"`
	}
	resp = app.getJSON(t, "/api/stops/1/arrivals", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", out.Stop)
	require.Len(t, out.Arrivals, 1)
	require.Equal(t, "27", out.Arrivals[0].Line)
	require.Equal(t, 45, out.Arrivals[0].EstimateSeconds)
	require.Equal(t, "45 seg", out.Arrivals[0].EstimateText)
	require.Equal(t, 320, out.Arrivals[0].DistanceMeters)
}

func TestAPI_StopsNextUsesSessionCursor(t *testing.T) {
	app := newTestApp(t)

	_, err := app.db.UpsertStops(context.Background(), []storage.Stop{
		{ID: "1", Name: "A"}, {ID: "2", Name: "B"}, {ID: "3", Name: "C"},
	})
	require.NoError(t, err)

	// Page size is 10, so one call drains the session.
	var out struct {
		Stops []storage.Stop `json:"stops"`
		More  bool           `json:"more"`
	}
	resp := app.getJSON(t, "/api/stops/next", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Stops, 3)
	require.False(t, out.More)
}
