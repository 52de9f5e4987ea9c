package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func get(t *testing.T, h *Health, path string) (int, statusResponse) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(p *probe, n int) {
	for range n {
		p.run(context.Background(), zap.NewNop())
	}
}

func TestLivez_Passing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())

	code, body := get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLivez_FailsAfterThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingCheck("too many"))
	p := h.liveness[0]

	runN(p, failureThreshold-1)
	code, _ := get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code, "below the threshold the check stays healthy")

	runN(p, 1)
	code, body := get(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "too many", body.Checks["goroutines"])
}

func TestReadyz_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, PingCheck("postgres", pinger{}))

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReadyz_OneDependencyDown(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, PingCheck("postgres", pinger{}))
	h.AddReadinessCheck("redis", time.Second, PingCheck("redis", pinger{err: errors.New("connection refused")}))
	h.SetReady(true)

	for _, p := range h.readiness {
		runN(p, failureThreshold)
	}

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.NotContains(t, body.Checks, "postgres")
	assert.Contains(t, body.Checks["redis"], "ping redis")
	assert.Contains(t, body.Checks["redis"], "connection refused")
	assert.False(t, h.IsReady())
}

func TestProbe_RecoveryIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lg := zap.New(core)

	failing := true
	p := newProbe("redis", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	assert.Nil(t, p.err())

	for range failureThreshold + 2 {
		p.run(context.Background(), lg)
	}
	assert.False(t, p.healthy.Load())
	assert.EqualError(t, p.err(), "down")
	assert.Equal(t, 1, logs.FilterMessage("Health check failing").Len(), "only the transition is logged")

	failing = false
	p.run(context.Background(), lg)
	assert.True(t, p.healthy.Load())
	assert.Equal(t, 1, logs.FilterMessage("Health check recovered").Len())
}

func TestStartStop(t *testing.T) {
	h := New()
	var (
		mu    sync.Mutex
		calls int
	)
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()

	mu.Lock()
	stopped := calls
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, stopped, calls, "no checks run after Stop")
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		})
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
