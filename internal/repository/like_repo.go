package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rishtahq/rishta-engine/internal/db"
	"github.com/rishtahq/rishta-engine/internal/utils/pagination"
)

// LikeRepository provides data access for the Like and Match models.
// It encapsulates the insert-or-ignore and canonical-pair operations
// the match engine's invariants rest on.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// CanonicalPair orders two user ids ascending. The Match table is keyed
// on this ordering so concurrent creation attempts for the same pair
// collide on one unique key.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// CreateLike inserts the directed like row (liker -> liked) with the
// given status if no row exists for the ordered pair.
//
// Behavior:
//   - New pair → row created, created=true.
//   - Pair exists (any status) → insert is ignored, created=false. The
//     uniqueness violation is the idempotency mechanism, not an error.
func (r *LikeRepository) CreateLike(
	ctx context.Context,
	likerID, likedID uint64,
	status string,
) (bool, error) {
	liker, liked := likerID, likedID
	like := db.Like{
		LikerID: &liker,
		LikedID: &liked,
		Status:  status,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
			DoNothing: true,
		}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetLike fetches the like row for the ordered pair, or nil if absent.
func (r *LikeRepository) GetLike(ctx context.Context, likerID, likedID uint64) (*db.Like, error) {
	var like db.Like
	err := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		First(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// HasPendingLike reports whether a pending like liker -> liked exists.
// Rows whose user references were nulled can never satisfy this.
func (r *LikeRepository) HasPendingLike(ctx context.Context, likerID, likedID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ? AND status = ?", likerID, likedID, db.LikeStatusPending).
		Count(&count).Error
	return count > 0, err
}

// PromoteToMatch transitions both directed likes of a mutual pair to
// matched and materializes the canonical Match row, all in one
// transaction.
//
// Behavior:
//   - The match insert is insert-or-ignore on the canonical pair. If a
//     concurrent actor already created the match, the existing row is
//     fetched and returned with created=false; the race is success, not
//     an error.
//   - Both like-status updates are idempotent, so the losing racer
//     re-applying them is harmless.
func (r *LikeRepository) PromoteToMatch(
	ctx context.Context,
	userA, userB uint64,
	ref string,
	matchedAt time.Time,
) (*db.Match, bool, error) {
	u1, u2 := CanonicalPair(userA, userB)

	var match db.Match
	var created bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Like{}).
			Where("liker_id = ? AND liked_id = ?", userA, userB).
			Update("status", db.LikeStatusMatched).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Like{}).
			Where("liker_id = ? AND liked_id = ?", userB, userA).
			Update("status", db.LikeStatusMatched).Error; err != nil {
			return err
		}

		c1, c2 := u1, u2
		match = db.Match{
			Ref:       ref,
			User1ID:   &c1,
			User2ID:   &c2,
			Status:    db.MatchStatusActive,
			MatchedAt: matchedAt,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).Create(&match)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		if !created {
			// concurrent creator won; surface their row
			if err := tx.Where("user1_id = ? AND user2_id = ?", u1, u2).
				First(&match).Error; err != nil {
				return fmt.Errorf("match insert conflicted but row not found: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &match, created, nil
}

// GetMatchByPair fetches the match for an unordered pair, or nil.
func (r *LikeRepository) GetMatchByPair(ctx context.Context, userA, userB uint64) (*db.Match, error) {
	u1, u2 := CanonicalPair(userA, userB)
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetMatchByRef fetches a match by its public reference, or nil.
func (r *LikeRepository) GetMatchByRef(ctx context.Context, ref string) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).Where("ref = ?", ref).First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// SetMatchStatus flips a match's status (unmatched, blocked). The
// underlying likes stay matched; unmatching never revives them.
func (r *LikeRepository) SetMatchStatus(ctx context.Context, ref, status string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("ref = ?", ref).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetLikers returns the users who liked the given recipient and have
// not been passed by them.
//
// Behavior:
//   - Pending and matched likes count; the recipient's own passes
//     exclude their targets from the listing.
//   - Ordered by updated_at DESC, liker_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *LikeRepository) GetLikers(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	var likes []db.Like

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ? AND l.status IN ?", recipientID,
			[]string{db.LikeStatusPending, db.LikeStatusMatched}).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM likes l2
				WHERE l2.liker_id = ?
				  AND l2.liked_id = l.liker_id
				  AND l2.status = ?
			)`, recipientID, db.LikeStatusPassed).
		Order("l.updated_at DESC, l.liker_id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.LikerID > 0 && cursor.UpdatedUnix > 0 {
		ts := time.UnixMilli(cursor.UpdatedUnix).UTC()
		query = query.Where(
			"(l.updated_at < ? OR (l.updated_at = ? AND l.liker_id < ?))",
			ts, ts, cursor.LikerID,
		)
	}

	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			LikerID:     derefID(last.LikerID),
			UpdatedUnix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikers returns how many users liked the given recipient,
// excluding those the recipient passed. Used with the Redis cache
// (DB is fallback).
func (r *LikeRepository) CountLikers(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ? AND l.status IN ?", recipientID,
			[]string{db.LikeStatusPending, db.LikeStatusMatched}).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM likes l2
				WHERE l2.liker_id = ?
				  AND l2.liked_id = l.liker_id
				  AND l2.status = ?
			)`, recipientID, db.LikeStatusPassed).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// NullifyUser nulls every like and match reference to a removed user.
// Rows persist for historical counts; a nulled like can never again
// participate in mutual detection.
func (r *LikeRepository) NullifyUser(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Like{}).
			Where("liker_id = ?", userID).
			Update("liker_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Like{}).
			Where("liked_id = ?", userID).
			Update("liked_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Match{}).
			Where("user1_id = ?", userID).
			Update("user1_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&db.Match{}).
			Where("user2_id = ?", userID).
			Update("user2_id", nil).Error
	})
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefID(id *uint64) uint64 {
	if id == nil {
		return 0
	}
	return *id
}
