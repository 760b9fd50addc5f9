package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostpaws/pawpoints/internal/app/notify"
	"github.com/lostpaws/pawpoints/internal/app/progression"
	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/health"
	"github.com/lostpaws/pawpoints/internal/infra/memstore"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, store domain.ProgressStore) *Server {
	t.Helper()
	mem := memstore.New()
	if store == nil {
		store = mem
	}
	ob := notify.NewOutbox(mem, nil, quietLogger())
	e := progression.NewEngine(store, progression.Options{
		Sink:         ob,
		Clock:        fixedClock,
		StoreTimeout: 100 * time.Millisecond,
		Logger:       quietLogger(),
	})
	return NewServer(e, ob, quietLogger())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type outcomesResponse struct {
	Outcomes []domain.Outcome `json:"outcomes"`
}

// brokenStore fails every save.
type brokenStore struct{ *memstore.Store }

func (brokenStore) Save(ctx context.Context, p domain.UserProgress) error {
	return errors.New("disk full")
}

// ═══════════════════════════════════════════════════════════════════════════
// Health & Version
// ═══════════════════════════════════════════════════════════════════════════

func TestHealth_NoChecker(t *testing.T) {
	w := do(t, newTestServer(t, nil).Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

type downPinger struct{}

func (downPinger) Ping(ctx context.Context) error { return errors.New("refused") }

func TestHealth_Degraded(t *testing.T) {
	srv := newTestServer(t, nil)
	c := health.NewChecker(downPinger{}, t.TempDir(), time.Hour, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx) // one round, then returns
	srv.SetHealth(c)

	w := do(t, srv.Handler(), "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestVersion(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.SetVersion("1.2.3")
	w := do(t, srv.Handler(), "GET", "/api/version", "")
	assert.Equal(t, "1.2.3", decode[map[string]string](t, w)["version"])
}

func TestMetrics_OnlyWhenEnabled(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), "GET", "/metrics", "").Code)

	srv.EnableMetrics()
	w := do(t, srv.Handler(), "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ═══════════════════════════════════════════════════════════════════════════
// Actions
// ═══════════════════════════════════════════════════════════════════════════

func TestReport(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	w := do(t, h, "POST", "/v1/users/ana/reports", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[outcomesResponse](t, w)
	assert.NotEmpty(t, first.Outcomes, "first report unlocks a badge and the daily challenge")

	level := decode[domain.LevelInfo](t, do(t, h, "GET", "/v1/users/ana/level", ""))
	assert.Equal(t, 1, level.CurrentLevel)
	assert.Equal(t, int64(10), level.TotalPoints)
}

func TestHelp_Emergency(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	w := do(t, h, "POST", "/v1/users/ben/helps", `{"emergency":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := decode[domain.UserProgress](t, do(t, h, "GET", "/v1/users/ben/progress", ""))
	assert.Equal(t, int64(1), p.LifetimeSuccessfulHelps)
	assert.Equal(t, int64(1), p.LifetimeEmergencyHelps)
	assert.Equal(t, progression.TierHelper, p.CurrentTierID)
}

func TestHelp_EmptyBodyIsRegular(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	require.Equal(t, http.StatusOK, do(t, h, "POST", "/v1/users/ben/helps", "").Code)

	p := decode[domain.UserProgress](t, do(t, h, "GET", "/v1/users/ben/progress", ""))
	assert.Equal(t, int64(0), p.LifetimeEmergencyHelps)
}

func TestHelp_BadJSON(t *testing.T) {
	w := do(t, newTestServer(t, nil).Handler(), "POST", "/v1/users/ben/helps", `{"emergency":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteChallenge(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	path := "/v1/users/cy/challenges/" + progression.ChallengeDailyCheckIn + "/complete"

	w := do(t, h, "POST", path, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[map[string]*domain.Outcome](t, w)
	require.NotNil(t, resp["outcome"])
	assert.Equal(t, progression.ChallengeDailyCheckIn, resp["outcome"].ChallengeID)

	// Second completion is a no-op
	resp = decode[map[string]*domain.Outcome](t, do(t, h, "POST", path, ""))
	assert.Nil(t, resp["outcome"])
}

func TestPersistenceFailure_Returns503(t *testing.T) {
	h := newTestServer(t, brokenStore{memstore.New()}).Handler()

	w := do(t, h, "POST", "/v1/users/ana/reports", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.SetRateLimiter(NewRateLimiter(0, 1))
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "POST", "/v1/users/ana/reports", "").Code)
	w := do(t, h, "POST", "/v1/users/ana/reports", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Other users and reads are not affected
	assert.Equal(t, http.StatusOK, do(t, h, "POST", "/v1/users/ben/reports", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/v1/users/ana/level", "").Code)
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard
// ═══════════════════════════════════════════════════════════════════════════

type leaderboardResponse struct {
	Entries []domain.RankedEntry `json:"entries"`
}

func TestLeaderboard(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, "POST", "/v1/users/ana/reports", "")
	do(t, h, "POST", "/v1/users/ben/helps", `{"emergency":true}`)

	global := decode[leaderboardResponse](t, do(t, h, "GET", "/v1/leaderboard", ""))
	require.Len(t, global.Entries, 2)
	assert.Equal(t, "ben", global.Entries[0].UserID)
	assert.Equal(t, 1, global.Entries[0].Rank)

	hood := decode[leaderboardResponse](t, do(t, h, "GET", "/v1/leaderboard?scope=neighborhood&users=ana,%20zed,&limit=1", ""))
	require.Len(t, hood.Entries, 1)
	assert.Equal(t, "ana", hood.Entries[0].UserID)
}

func TestLeaderboard_BadRequests(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	for _, path := range []string{
		"/v1/leaderboard?scope=city",
		"/v1/leaderboard?scope=neighborhood",
		"/v1/leaderboard?limit=-1",
		"/v1/leaderboard?limit=ten",
	} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", path, "").Code, path)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notifications
// ═══════════════════════════════════════════════════════════════════════════

func TestNotifications(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	do(t, h, "POST", "/v1/users/ana/reports", "")

	w := do(t, h, "GET", "/v1/users/ana/notifications?limit=50", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string][]domain.Notification](t, w)
	pending := resp["notifications"]
	require.NotEmpty(t, pending)

	w = do(t, h, "POST", "/v1/notifications/"+pending[0].ID+"/shown", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	resp = decode[map[string][]domain.Notification](t, do(t, h, "GET", "/v1/users/ana/notifications?limit=50", ""))
	assert.Len(t, resp["notifications"], len(pending)-1)

	w = do(t, h, "POST", "/v1/notifications/missing/shown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ═══════════════════════════════════════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════════════════════════════════════

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidUserID, http.StatusBadRequest},
		{domain.ErrUnknownScope, http.StatusBadRequest},
		{domain.ErrNotificationNotFound, http.StatusNotFound},
		{domain.ErrPersistence, http.StatusServiceUnavailable},
		{errors.Join(domain.ErrPersistence, domain.ErrStoreTimeout), http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestSplitUsers(t *testing.T) {
	assert.Nil(t, splitUsers(""))
	assert.Equal(t, []string{"a", "b"}, splitUsers(" a, ,b,"))
}
