package connections_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rishtahq/rishta-engine/internal/app"
	"github.com/rishtahq/rishta-engine/internal/cache"
	"github.com/rishtahq/rishta-engine/internal/clock"
	"github.com/rishtahq/rishta-engine/internal/config"
	"github.com/rishtahq/rishta-engine/internal/db"
	"github.com/rishtahq/rishta-engine/internal/notify"
	"github.com/rishtahq/rishta-engine/internal/repository"
	"github.com/rishtahq/rishta-engine/internal/service/connections"
	"github.com/rishtahq/rishta-engine/internal/tier"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// recordingDispatcher captures every event the engine fires.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *recordingDispatcher) Notify(_ context.Context, ev notify.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *recordingDispatcher) byKind(kind notify.EventKind) []notify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Event
	for _, ev := range d.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// SeedConnectionUsers inserts six gold-tier users so like quotas never
// interfere with match-engine tests.
func SeedConnectionUsers(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	future := testNow.Add(30 * 24 * time.Hour)
	users := make([]db.User, 0, 6)
	for i := uint64(1); i <= 6; i++ {
		gender := "male"
		if i%2 == 0 {
			gender = "female"
		}
		users = append(users, db.User{
			ID:           i,
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("u%d@test.com", i),
			PasswordHash: "x",
			Gender:       gender,
			Plan:         "gold",
			PlanStatus:   "active",
			PlanExpiresAt: func() *time.Time {
				f := future
				return &f
			}(),
		})
	}
	require.NoError(t, gdb.Create(&users).Error)
}

// setupEngine wires an isolated engine: in-memory SQLite, miniredis,
// frozen clock, recording dispatcher.
func setupEngine(t *testing.T) (*app.AppContext, *connections.Service, *recordingDispatcher) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.User{}, &db.DailyActivity{}, &db.Like{}, &db.Match{}))
	SeedConnectionUsers(t, dbase)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	dispatcher := &recordingDispatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(cfg, dbase, cache.NewRedisCache(cfg), logger,
		clock.Fixed{T: testNow}, tier.DefaultTable(), dispatcher)
	return appCtx, connections.NewConnectionsService(appCtx), dispatcher
}

//
// Tests
//

func TestLikeCreatesPending(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	res, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Matched)
	assert.Empty(t, res.MatchRef)

	// one like_received, no match
	assert.Len(t, dispatcher.byKind(notify.EventLikeReceived), 1)
	assert.Empty(t, dispatcher.byKind(notify.EventMatchCreated))

	// charge-on-success landed in the ledger
	repo := repository.NewActivityRepository(appCtx.DB)
	n, err := repo.Count(ctx, 1, "likes_sent", appCtx.Clock.Today())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMutualLikeCreatesMatch(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	_, err := svc.Like(ctx, 5, 2)
	require.NoError(t, err)

	res, err := svc.Like(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Matched)
	assert.NotEmpty(t, res.MatchRef)

	// canonical pair: user1 < user2 regardless of completing direction
	var match db.Match
	require.NoError(t, appCtx.DB.First(&match).Error)
	require.NotNil(t, match.User1ID)
	require.NotNil(t, match.User2ID)
	assert.Equal(t, uint64(2), *match.User1ID)
	assert.Equal(t, uint64(5), *match.User2ID)
	assert.Equal(t, db.MatchStatusActive, match.Status)
	assert.Equal(t, res.MatchRef, match.Ref)

	// exactly one notification per participant, each naming the other
	events := dispatcher.byKind(notify.EventMatchCreated)
	require.Len(t, events, 2)
	targets := map[uint64]uint64{}
	for _, ev := range events {
		targets[ev.TargetID] = ev.ActorID
	}
	assert.Equal(t, uint64(5), targets[2])
	assert.Equal(t, uint64(2), targets[5])

	// both like rows are terminal
	likeRepo := repository.NewLikeRepository(appCtx.DB)
	like, err := likeRepo.GetLike(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, db.LikeStatusMatched, like.Status)
	like, err = likeRepo.GetLike(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, db.LikeStatusMatched, like.Status)
}

func TestRelikeIsNoOp(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	_, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)

	res, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.AlreadyExists)

	// no second like row, no second notification
	var rows int64
	require.NoError(t, appCtx.DB.Model(&db.Like{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assert.Len(t, dispatcher.byKind(notify.EventLikeReceived), 1)
}

func TestRelikeAfterMatchReportsSameRef(t *testing.T) {
	ctx := context.Background()
	_, svc, dispatcher := setupEngine(t)

	_, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	first, err := svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, first.Matched)

	again, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
	assert.True(t, again.Matched)
	assert.Equal(t, first.MatchRef, again.MatchRef)

	// matched pairs never re-notify
	assert.Len(t, dispatcher.byKind(notify.EventMatchCreated), 2)
}

// TestRelikeResumesStalledMutualPair: if a crash between the like
// committing and the reverse check leaves both directions pending, the
// retry must finish the promotion instead of reporting no match.
func TestRelikeResumesStalledMutualPair(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	likeRepo := repository.NewLikeRepository(appCtx.DB)
	created, err := likeRepo.CreateLike(ctx, 1, 2, db.LikeStatusPending)
	require.NoError(t, err)
	require.True(t, created)
	created, err = likeRepo.CreateLike(ctx, 2, 1, db.LikeStatusPending)
	require.NoError(t, err)
	require.True(t, created)

	res, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)
	assert.True(t, res.Matched)
	assert.NotEmpty(t, res.MatchRef)

	var rows int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assert.Len(t, dispatcher.byKind(notify.EventMatchCreated), 2)

	// both like rows reached their terminal state
	like, err := likeRepo.GetLike(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, db.LikeStatusMatched, like.Status)
}

func TestConcurrentMutualLikeSingleMatch(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	var wg sync.WaitGroup
	results := make([]connections.LikeResult, 2)
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svc.Like(ctx, 3, 4)
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = svc.Like(ctx, 4, 3)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// exactly one canonical match row, whatever the interleaving
	var matches []db.Match
	require.NoError(t, appCtx.DB.Find(&matches).Error)
	require.Len(t, matches, 1)
	require.NotNil(t, matches[0].User1ID)
	require.NotNil(t, matches[0].User2ID)
	assert.Equal(t, uint64(3), *matches[0].User1ID)
	assert.Equal(t, uint64(4), *matches[0].User2ID)

	// at least one direction observed the promotion, and every
	// reported ref is the canonical row's
	sawMatch := false
	for _, res := range results {
		if res.Matched {
			sawMatch = true
			assert.Equal(t, matches[0].Ref, res.MatchRef)
		}
	}
	assert.True(t, sawMatch)

	// exactly two match notifications, one per participant
	events := dispatcher.byKind(notify.EventMatchCreated)
	assert.Len(t, events, 2)
}

func TestMutualStatusAndUnmatch(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := setupEngine(t)

	matched, _, err := svc.MutualStatus(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, matched)

	_, err = svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	res, err := svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, res.Matched)

	matched, ref, err := svc.MutualStatus(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, res.MatchRef, ref)

	require.NoError(t, svc.Unmatch(ctx, ref))

	// unmatched pairs are no longer mutual and never re-match
	matched, _, err = svc.MutualStatus(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, matched)

	again, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)

	err = svc.Unmatch(ctx, "no-such-ref")
	require.Error(t, err)
}

func TestPassNeverMatches(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	_, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)

	res, err := svc.Pass(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Matched)

	var matches int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&matches).Error)
	assert.Equal(t, int64(0), matches)
	assert.Empty(t, dispatcher.byKind(notify.EventMatchCreated))
}

// TestRemoveUserReferences: account removal nulls the user out of
// mutual detection while the rows stay for historical counts.
func TestRemoveUserReferences(t *testing.T) {
	ctx := context.Background()
	appCtx, svc, dispatcher := setupEngine(t)

	_, err := svc.Like(ctx, 2, 1)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveUserReferences(ctx, 2))

	// the nulled like can no longer complete a mutual pair
	res, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Empty(t, dispatcher.byKind(notify.EventMatchCreated))

	// nulled row plus the fresh one; nothing was deleted
	var rows int64
	require.NoError(t, appCtx.DB.Model(&db.Like{}).Count(&rows).Error)
	assert.Equal(t, int64(2), rows)
}

//
// Handler tests
//

func setupRouter(t *testing.T) (*app.AppContext, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	appCtx, _, _ := setupEngine(t)
	router := gin.New()
	connections.NewRegistrar(appCtx).Register(router)
	return appCtx, router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestLikeHandlerFlow(t *testing.T) {
	_, router := setupRouter(t)

	w := postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":2}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)

	w = postJSON(router, "/v1/likes", `{"liker_user_id":2,"liked_user_id":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"matched":true`)
	assert.Contains(t, w.Body.String(), `"match_ref"`)
}

func TestLikeHandlerValidation(t *testing.T) {
	_, router := setupRouter(t)

	// self-like
	w := postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// missing body fields
	w = postJSON(router, "/v1/likes", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown target user
	w = postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":999}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLikeHandlerQuotaDenied(t *testing.T) {
	appCtx, router := setupRouter(t)

	// shrink the gold likes ceiling so the second like trips the gate
	appCtx.Limits.ApplyOverrides(map[string]int64{"gold.likes_sent": 1})

	w := postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":3}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"allowed":false`)
	assert.Contains(t, w.Body.String(), `"limit":1`)
}

func TestMutualStatusHandler(t *testing.T) {
	_, router := setupRouter(t)

	postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":2}`)
	postJSON(router, "/v1/likes", `{"liker_user_id":2,"liked_user_id":1}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/matches/status?user1=2&user2=1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"matched":true`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/matches/status?user1=abc&user2=1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLikedYouHandlerExcludesPassed(t *testing.T) {
	_, router := setupRouter(t)

	postJSON(router, "/v1/likes", `{"liker_user_id":2,"liked_user_id":1}`)
	postJSON(router, "/v1/likes", `{"liker_user_id":3,"liked_user_id":1}`)
	// recipient passes user 3, hiding them from the listing
	postJSON(router, "/v1/likes", `{"liker_user_id":1,"liked_user_id":3,"pass":true}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/likes/received/1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"liker_id":2`)
	assert.NotContains(t, w.Body.String(), `"liker_id":3`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/likes/received/1/count", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestRemoveUserHandler(t *testing.T) {
	_, router := setupRouter(t)

	postJSON(router, "/v1/likes", `{"liker_user_id":2,"liked_user_id":1}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/users/2/references", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// the removed user disappears from the liked-you listing
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/likes/received/1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"liker_id":2`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/users/abc/references", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
