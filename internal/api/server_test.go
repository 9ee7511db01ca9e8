package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/repository"
	helpers "git.home.luguber.info/inful/pkgrepo/internal/testutil/testutils"
)

type fakeRegistry struct {
	mu        sync.Mutex
	packages  []descriptor.Descriptor
	aux       []string
	triggers  []bool
	triggerFn func(force bool) error
}

func (f *fakeRegistry) Name() string      { return "modules" }
func (f *fakeRegistry) Directory() string { return "/srv/modules" }

func (f *fakeRegistry) FindAll() []descriptor.Descriptor { return f.packages }

func (f *fakeRegistry) FindByName(name string) (descriptor.Descriptor, bool) {
	for _, d := range f.packages {
		if d.Name == name {
			return d, true
		}
	}
	return descriptor.Descriptor{}, false
}

func (f *fakeRegistry) Auxiliary() []string { return f.aux }

func (f *fakeRegistry) Trigger(_ context.Context, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, force)
	if f.triggerFn != nil {
		return f.triggerFn(force)
	}
	return nil
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		packages: []descriptor.Descriptor{
			{Name: "alpha", Version: semver.MustParse("1.0.0"), Location: "/srv/modules/alpha.zip", Checksum: "abc"},
			{Name: "beta", Version: semver.MustParse("2.1.0"), Location: "/srv/modules/beta.zip", Requires: []string{"alpha"}},
		},
		aux: []string{"/srv/modules/README.txt"},
	}
}

func newTestServer(reg Registry, metricsHandler http.Handler) *Server {
	return NewServer(Options{
		Addr:     "127.0.0.1:0",
		Registry: reg,
		Metrics:  metricsHandler,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, into))
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(newFakeRegistry(), nil)
	w := do(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthView
	decodeData(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "modules", health.Repository)
	assert.Equal(t, 2, health.Packages)
	assert.Equal(t, 1, health.Auxiliary)
}

func TestListPackages(t *testing.T) {
	srv := newTestServer(newFakeRegistry(), nil)
	w := do(t, srv, http.MethodGet, "/packages")
	require.Equal(t, http.StatusOK, w.Code)

	var views []PackageView
	decodeData(t, w, &views)
	require.Len(t, views, 2)
	assert.Equal(t, "alpha", views[0].Name)
	assert.Equal(t, "1.0.0", views[0].Version)
	assert.Equal(t, []string{"alpha"}, views[1].Requires)
}

func TestGetPackage(t *testing.T) {
	srv := newTestServer(newFakeRegistry(), nil)

	w := do(t, srv, http.MethodGet, "/packages/beta")
	require.Equal(t, http.StatusOK, w.Code)
	var view PackageView
	decodeData(t, w, &view)
	assert.Equal(t, "2.1.0", view.Version)

	w = do(t, srv, http.MethodGet, "/packages/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Equal(t, "not_found", errResp["code"])
}

func TestAuxiliaryEndpoint(t *testing.T) {
	reg := newFakeRegistry()
	reg.aux = nil
	srv := newTestServer(reg, nil)

	w := do(t, srv, http.MethodGet, "/auxiliary")
	require.Equal(t, http.StatusOK, w.Code)
	var aux []string
	decodeData(t, w, &aux)
	assert.Empty(t, aux)
	assert.NotNil(t, aux)
}

func TestRescan(t *testing.T) {
	reg := newFakeRegistry()
	srv := newTestServer(reg, nil)

	assert.Equal(t, http.StatusAccepted, do(t, srv, http.MethodPost, "/rescan").Code)
	assert.Equal(t, http.StatusAccepted, do(t, srv, http.MethodPost, "/rescan?force=true").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/rescan?force=maybe").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodGet, "/rescan").Code)

	assert.Equal(t, []bool{false, true}, reg.triggers)
}

func TestRescan_AfterShutdown(t *testing.T) {
	reg := newFakeRegistry()
	reg.triggerFn = func(bool) error { return repository.ErrShutdown }
	srv := newTestServer(reg, nil)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/rescan").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	promReg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(promReg)
	recorder.SetPackages("modules", 3)

	srv := newTestServer(newFakeRegistry(), metrics.HTTPHandler(promReg))
	w := do(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pkgrepo_packages")

	noMetrics := newTestServer(newFakeRegistry(), nil)
	assert.Equal(t, http.StatusNotFound, do(t, noMetrics, http.MethodGet, "/metrics").Code)
}

func TestServerWithRepository(t *testing.T) {
	dir := helpers.NewPackageDir(t).
		WritePackage("alpha.zip", "alpha", "1.0.0").
		WriteFile("notes.txt", "hello")

	repo, err := repository.New(repository.Options{
		Directory: dir.Path(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Shutdown() })

	srv := newTestServer(repo, nil)

	// Before the timer starts a rescan runs synchronously.
	require.Equal(t, http.StatusAccepted, do(t, srv, http.MethodPost, "/rescan?force=true").Code)

	w := do(t, srv, http.MethodGet, "/packages/alpha")
	require.Equal(t, http.StatusOK, w.Code)
	var view PackageView
	decodeData(t, w, &view)
	assert.Equal(t, "1.0.0", view.Version)
	assert.Equal(t, dir.File("alpha.zip"), view.Location)

	w = do(t, srv, http.MethodGet, "/auxiliary")
	var aux []string
	decodeData(t, w, &aux)
	assert.Equal(t, []string{dir.File("notes.txt")}, aux)
}

func TestServeAndShutdown(t *testing.T) {
	srv := newTestServer(newFakeRegistry(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
}
