package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rishtahq/rishta-engine/internal/activity"
	"github.com/rishtahq/rishta-engine/internal/db"
)

// ActivityRepository is the daily activity ledger: one row per
// (user, activity kind, calendar day), mutated only by atomic
// increments.
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new repository bound to the given DB connection.
func NewActivityRepository(database *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: database}
}

// Increment bumps the counter for (userID, kind, day) by exactly one
// and returns the count after the increment.
//
// Behavior:
//   - No row for the key → a row is created with count 1.
//   - Row exists → a single `count = count + 1` upsert runs inside the
//     database, so two concurrent callers can never both write the same
//     post-increment value. After N increments the count is exactly N.
//
// The day key is trusted as supplied; callers derive it from the
// service clock.
func (r *ActivityRepository) Increment(
	ctx context.Context,
	userID uint64,
	kind activity.Kind,
	day string,
) (int64, error) {
	row := db.DailyActivity{
		UserID: userID,
		Kind:   kind.String(),
		Day:    day,
		Count:  1,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("count + ?", 1),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return 0, err
	}

	// The upsert leaves row.Count at its pre-insert value on conflict;
	// read the cell back for the post-increment count.
	return r.Count(ctx, userID, kind, day)
}

// Count returns the current count for (userID, kind, day). Absence of
// a row means 0; reads never create rows.
func (r *ActivityRepository) Count(
	ctx context.Context,
	userID uint64,
	kind activity.Kind,
	day string,
) (int64, error) {
	var row db.DailyActivity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND day = ?", userID, kind.String(), day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}
