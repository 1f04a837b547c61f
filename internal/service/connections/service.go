package connections

import (
	"context"

	"github.com/google/uuid"

	"github.com/rishtahq/rishta-engine/internal/activity"
	"github.com/rishtahq/rishta-engine/internal/app"
	"github.com/rishtahq/rishta-engine/internal/db"
	svcErr "github.com/rishtahq/rishta-engine/internal/errors"
	"github.com/rishtahq/rishta-engine/internal/notify"
	"github.com/rishtahq/rishta-engine/internal/repository"
	"github.com/rishtahq/rishta-engine/internal/service/quota"
)

// Service is the like/match engine. It records directed likes, detects
// mutual pairs, and promotes them into exactly one canonical Match,
// invoking the notification hook on the way out. All mutual exclusion
// lives in the storage layer's unique constraints; the service holds no
// locks across I/O, so any number of instances can run concurrently.
type Service struct {
	appCtx   *app.AppContext
	likeRepo *repository.LikeRepository
	userRepo *repository.UserRepository
	gate     *quota.Service
}

// NewConnectionsService creates the engine with dependencies from
// AppContext.
func NewConnectionsService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		likeRepo: repository.NewLikeRepository(appCtx.DB),
		userRepo: repository.NewUserRepository(appCtx.DB),
		gate:     quota.NewQuotaService(appCtx),
	}
}

// Gate exposes the embedded quota service, letting tests swap its
// subscription source.
func (s *Service) Gate() *quota.Service { return s.gate }

// LikeResult is the outcome of a like submission.
type LikeResult struct {
	Created       bool   `json:"created"`
	AlreadyExists bool   `json:"already_exists"`
	Matched       bool   `json:"matched"`
	MatchRef      string `json:"match_ref,omitempty"`
}

// Like runs the per-pair state machine for liker -> liked:
//
//	no record            -> pending (row created)
//	pending + reverse    -> matched (both rows flipped, one Match row)
//	matched / passed     -> no-op on re-like, reported as existing
//
// Quota is charged only after the like row actually lands
// (charge-on-success). The match insert is idempotent: losing a
// creation race is reported as the same match, and only the winning
// actor sends the two notifications and charges matches_created.
func (s *Service) Like(ctx context.Context, likerID, likedID uint64) (LikeResult, error) {
	created, err := s.likeRepo.CreateLike(ctx, likerID, likedID, db.LikeStatusPending)
	if err != nil {
		return LikeResult{}, svcErr.Unavailable(err)
	}

	if !created {
		return s.existingLike(ctx, likerID, likedID)
	}

	res := LikeResult{Created: true}

	if _, err := s.gate.Charge(ctx, likerID, activity.KindLikesSent); err != nil {
		// the like row is already durable; a lost charge is logged,
		// not rolled back
		s.appCtx.Logger.Error("failed to charge likes_sent", "user", likerID, "err", err)
	}

	// new like lands in the recipient's liked-you count
	s.appCtx.RedisCache.BumpCount(ctx, s.appCtx.RedisCache.KeyForLikeCount(likedID), 1)

	reverse, err := s.likeRepo.HasPendingLike(ctx, likedID, likerID)
	if err != nil {
		return res, svcErr.Unavailable(err)
	}

	if !reverse {
		s.dispatch(ctx, notify.Event{
			Kind:     notify.EventLikeReceived,
			ActorID:  likerID,
			TargetID: likedID,
		})
		return res, nil
	}

	match, err := s.promoteMutual(ctx, likerID, likedID)
	if err != nil {
		return res, svcErr.Unavailable(err)
	}

	res.Matched = true
	res.MatchRef = match.Ref
	return res, nil
}

// promoteMutual promotes a confirmed mutual pair to a match. Only the
// call that actually created the row sends the notifications and
// charges matches_created; a race loser returns the existing match
// silently.
func (s *Service) promoteMutual(ctx context.Context, likerID, likedID uint64) (*db.Match, error) {
	match, wonRace, err := s.likeRepo.PromoteToMatch(
		ctx, likerID, likedID, uuid.NewString(), s.appCtx.Clock.Now())
	if err != nil {
		return nil, err
	}

	if wonRace {
		s.appCtx.Logger.Info("match created",
			"match_ref", match.Ref, "user1", likerID, "user2", likedID)

		// one notification per participant, each naming the other
		s.dispatch(ctx, notify.Event{
			Kind: notify.EventMatchCreated, ActorID: likedID, TargetID: likerID,
		})
		s.dispatch(ctx, notify.Event{
			Kind: notify.EventMatchCreated, ActorID: likerID, TargetID: likedID,
		})

		// observability charge; matches are not tier-gated
		for _, id := range []uint64{likerID, likedID} {
			if _, err := s.gate.Charge(ctx, id, activity.KindMatchesCreated); err != nil {
				s.appCtx.Logger.Error("failed to charge matches_created", "user", id, "err", err)
			}
		}
	}

	return match, nil
}

// existingLike reports the current state of an already-recorded pair.
// A pending row re-runs mutual detection: if the original request died
// between the like committing and the reverse check, both directions
// sit pending until a retry lands here, and the pair must still match.
func (s *Service) existingLike(ctx context.Context, likerID, likedID uint64) (LikeResult, error) {
	res := LikeResult{AlreadyExists: true}

	like, err := s.likeRepo.GetLike(ctx, likerID, likedID)
	if err != nil {
		return res, svcErr.Unavailable(err)
	}
	if like == nil {
		return res, nil
	}

	switch like.Status {
	case db.LikeStatusPending:
		reverse, err := s.likeRepo.HasPendingLike(ctx, likedID, likerID)
		if err != nil {
			return res, svcErr.Unavailable(err)
		}
		if !reverse {
			return res, nil
		}
		match, err := s.promoteMutual(ctx, likerID, likedID)
		if err != nil {
			return res, svcErr.Unavailable(err)
		}
		res.Matched = true
		res.MatchRef = match.Ref
		return res, nil

	case db.LikeStatusMatched:
		match, err := s.likeRepo.GetMatchByPair(ctx, likerID, likedID)
		if err != nil {
			return res, svcErr.Unavailable(err)
		}
		if match != nil {
			res.Matched = true
			res.MatchRef = match.Ref
		}
		return res, nil

	default: // passed
		return res, nil
	}
}

// Pass records a directed pass. Passed rows never participate in
// mutual detection; they only feed the liked-you exclusion filter.
func (s *Service) Pass(ctx context.Context, likerID, likedID uint64) (LikeResult, error) {
	created, err := s.likeRepo.CreateLike(ctx, likerID, likedID, db.LikeStatusPassed)
	if err != nil {
		return LikeResult{}, svcErr.Unavailable(err)
	}
	if !created {
		return LikeResult{AlreadyExists: true}, nil
	}

	// the pass may hide someone from the passer's liked-you list;
	// drop the cached count rather than guessing the delta
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(likerID))

	return LikeResult{Created: true}, nil
}

// MutualStatus reports whether two users are currently matched
// (status active) and the match reference if so.
func (s *Service) MutualStatus(ctx context.Context, userA, userB uint64) (bool, string, error) {
	match, err := s.likeRepo.GetMatchByPair(ctx, userA, userB)
	if err != nil {
		return false, "", svcErr.Unavailable(err)
	}
	if match == nil || match.Status != db.MatchStatusActive {
		return false, "", nil
	}
	return true, match.Ref, nil
}

// Unmatch flips a match to unmatched. The underlying likes stay in
// their matched state; an unmatched pair can never re-match.
func (s *Service) Unmatch(ctx context.Context, ref string) error {
	found, err := s.likeRepo.SetMatchStatus(ctx, ref, db.MatchStatusUnmatched)
	if err != nil {
		return svcErr.Unavailable(err)
	}
	if !found {
		// zero rows touched: either the ref is unknown or the match is
		// already unmatched, which is an idempotent success
		match, err := s.likeRepo.GetMatchByRef(ctx, ref)
		if err != nil {
			return svcErr.Unavailable(err)
		}
		if match == nil {
			return svcErr.NotFound("match not found")
		}
	}
	return nil
}

// RemoveUserReferences nulls every like and match reference to a
// removed user and drops their cached liked-you count. The platform's
// account-removal flow calls this; the rows themselves survive so
// historical counts stay intact, and a nulled row can never complete a
// mutual pair again.
func (s *Service) RemoveUserReferences(ctx context.Context, userID uint64) error {
	if err := s.likeRepo.NullifyUser(ctx, userID); err != nil {
		return svcErr.Unavailable(err)
	}
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(userID))
	return nil
}

// dispatch invokes the notification hook. Failures are logged and
// never affect the already-committed transaction.
func (s *Service) dispatch(ctx context.Context, ev notify.Event) {
	if err := s.appCtx.Dispatcher.Notify(ctx, ev); err != nil {
		s.appCtx.Logger.Error("notification dispatch failed",
			"event", string(ev.Kind), "actor", ev.ActorID, "target", ev.TargetID, "err", err)
	}
}
