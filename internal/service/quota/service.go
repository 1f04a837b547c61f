package quota

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rishtahq/rishta-engine/internal/activity"
	"github.com/rishtahq/rishta-engine/internal/app"
	svcErr "github.com/rishtahq/rishta-engine/internal/errors"
	"github.com/rishtahq/rishta-engine/internal/repository"
	"github.com/rishtahq/rishta-engine/internal/tier"
)

// SubscriptionSource supplies the subscription snapshot the tier
// resolver consumes. Implemented by repository.UserRepository; tests
// substitute fakes.
type SubscriptionSource interface {
	Subscription(ctx context.Context, userID uint64) (plan, status string, expiresAt *time.Time, err error)
}

// Decision is the structured outcome of a quota check. A denial is a
// normal decision value, never an error: it carries enough detail for
// the caller to render an actionable upgrade prompt.
type Decision struct {
	Allowed     bool      `json:"allowed"`
	Tier        tier.Tier `json:"tier"`
	Limit       int64     `json:"limit"` // -1 means unlimited
	Current     int64     `json:"current_count"`
	Reason      string    `json:"reason,omitempty"`
	Upgradeable bool      `json:"upgradeable"`
}

// Service is the quota gate: it composes the tier resolver and the
// daily activity ledger to answer "is this action allowed now" and to
// charge it. Charging is the caller's responsibility after the guarded
// action succeeds, so a failed downstream action never burns quota.
type Service struct {
	appCtx       *app.AppContext
	activityRepo *repository.ActivityRepository
	subs         SubscriptionSource
	failOpen     map[activity.Kind]bool
}

// NewQuotaService creates the gate with dependencies from AppContext.
func NewQuotaService(appCtx *app.AppContext) *Service {
	failOpen := make(map[activity.Kind]bool)
	for _, k := range appCtx.Cfg.Quota.FailOpenKinds {
		if kind, ok := activity.Parse(k); ok {
			failOpen[kind] = true
		}
	}
	return &Service{
		appCtx:       appCtx,
		activityRepo: repository.NewActivityRepository(appCtx.DB),
		subs:         repository.NewUserRepository(appCtx.DB),
		failOpen:     failOpen,
	}
}

// WithSubscriptionSource swaps the subscription provider. Used by
// tests and by deployments that read subscription state from another
// service instead of the local user table.
func (s *Service) WithSubscriptionSource(src SubscriptionSource) *Service {
	s.subs = src
	return s
}

// Check reports whether one more action of the given kind is allowed
// for the user today. It never increments the ledger.
//
// The gating read goes to the ledger, not the cache: a cached counter
// is best-effort (charge writes to it are dropped on a Redis blip) and
// a stale value must never widen the gate. The cache is refreshed on
// the way out for the display endpoints.
//
// Storage failure policy: kinds listed in QUOTA_FAIL_OPEN_KINDS are
// allowed through with a warning; everything else fails closed and the
// storage error is surfaced.
func (s *Service) Check(ctx context.Context, userID uint64, kind activity.Kind) (Decision, error) {
	plan, status, expiresAt, err := s.subs.Subscription(ctx, userID)
	if err != nil {
		var e *svcErr.Error
		if errors.As(err, &e) && e.Status == http.StatusNotFound {
			// unknown user is a caller problem, not an outage
			return Decision{}, err
		}
		return s.failPolicy(kind, err)
	}

	now := s.appCtx.Clock.Now()
	tr := tier.Resolve(plan, status, expiresAt, now)
	limit := s.appCtx.Limits.Lookup(tr, kind)

	if limit.Unlimited {
		// no count read on the unlimited path; charges still land in
		// the ledger for observability
		return Decision{
			Allowed:     true,
			Tier:        tr,
			Limit:       -1,
			Upgradeable: tr.Upgradeable(),
		}, nil
	}

	day := s.appCtx.Clock.Today()
	current, err := s.activityRepo.Count(ctx, userID, kind, day)
	if err != nil {
		return s.failPolicy(kind, err)
	}
	_ = s.appCtx.RedisCache.SetCount(ctx,
		s.appCtx.RedisCache.KeyForDailyCount(userID, kind, day), current)

	d := Decision{
		Allowed:     current < limit.Ceiling,
		Tier:        tr,
		Limit:       limit.Ceiling,
		Current:     current,
		Upgradeable: tr.Upgradeable(),
	}
	if !d.Allowed {
		d.Reason = "daily limit reached"
	}
	return d, nil
}

// Charge consumes one unit of the activity kind for the user today and
// returns the new count. Charging always fails closed: a storage error
// here means the action must not be treated as charged.
func (s *Service) Charge(ctx context.Context, userID uint64, kind activity.Kind) (int64, error) {
	day := s.appCtx.Clock.Today()
	count, err := s.activityRepo.Increment(ctx, userID, kind, day)
	if err != nil {
		return 0, svcErr.Unavailable(err)
	}

	// keep the cached counter honest, best-effort
	key := s.appCtx.RedisCache.KeyForDailyCount(userID, kind, day)
	_ = s.appCtx.RedisCache.SetCount(ctx, key, count)

	return count, nil
}

// failPolicy applies the per-kind fail-open/fail-closed choice when
// tier or ledger state cannot be read.
func (s *Service) failPolicy(kind activity.Kind, cause error) (Decision, error) {
	if s.failOpen[kind] {
		s.appCtx.Logger.Warn("quota storage unavailable, failing open",
			"kind", kind.String(), "err", cause)
		return Decision{
			Allowed: true,
			Tier:    tier.Free,
			Limit:   -1,
			Reason:  "storage unavailable, fail-open",
		}, nil
	}
	return Decision{}, svcErr.Unavailable(cause)
}

//
// HTTP handlers
//

// CheckHandler serves GET /v1/quota/:user_id/:kind.
func (s *Service) CheckHandler(c *gin.Context) {
	userID, kind, err := s.parseParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	decision, err := s.Check(c.Request.Context(), userID, kind)
	if err != nil {
		s.appCtx.Logger.Error("quota check failed", "user", userID, "kind", kind.String(), "err", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// ChargeHandler serves POST /v1/quota/:user_id/:kind/charge.
func (s *Service) ChargeHandler(c *gin.Context) {
	userID, kind, err := s.parseParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	count, err := s.Charge(c.Request.Context(), userID, kind)
	if err != nil {
		s.appCtx.Logger.Error("quota charge failed", "user", userID, "kind", kind.String(), "err", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"current_count": count})
}

func (s *Service) parseParams(c *gin.Context) (uint64, activity.Kind, error) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		return 0, "", svcErr.InvalidArgument("user_id must be a valid uint64")
	}
	kind, ok := activity.Parse(c.Param("kind"))
	if !ok {
		return 0, "", svcErr.InvalidArgument("unknown activity kind")
	}
	return userID, kind, nil
}

func respondError(c *gin.Context, err error) {
	status, msg := svcErr.HTTPStatus(err)
	c.JSON(status, gin.H{"error": msg})
}
