package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rishtahq/rishta-engine/internal/db"
	svcErr "github.com/rishtahq/rishta-engine/internal/errors"
)

// UserRepository reads the externally-owned user rows. The engine only
// consumes the subscription snapshot from them.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Subscription returns the (plan, status, expiresAt) triple the tier
// resolver consumes.
func (r *UserRepository) Subscription(ctx context.Context, userID uint64) (string, string, *time.Time, error) {
	var user db.User
	err := r.db.WithContext(ctx).
		Select("plan", "plan_status", "plan_expires_at").
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", nil, svcErr.NotFound("user not found")
	}
	if err != nil {
		return "", "", nil, err
	}
	return user.Plan, user.PlanStatus, user.PlanExpiresAt, nil
}

// Exists reports whether a user row exists.
func (r *UserRepository) Exists(ctx context.Context, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Count(&count).Error
	return count > 0, err
}
