package db

import (
	"time"
)

// User table. Owned by the wider platform; the engine reads the
// subscription snapshot (Plan, PlanStatus, PlanExpiresAt) and nothing
// else writes it here.
type User struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Username      string `gorm:"uniqueIndex;size:64;not null"`
	Email         string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash  string `gorm:"size:255;not null"`
	Gender        string `gorm:"size:16;not null"`
	Plan          string `gorm:"size:32"` // empty, basic, gold, platinum
	PlanStatus    string `gorm:"size:16"` // active, cancelled, expired
	PlanExpiresAt *time.Time
	Active        bool `gorm:"default:true"`
	LastLoginAt   time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// DailyActivity is one ledger row: how many actions of one kind a user
// performed on one calendar day.
//
// Composite unique key (user_id, kind, day):
//   - At most one row per key; the ON CONFLICT increment in
//     ActivityRepository relies on it as the concurrency arbiter.
//
// Day is the caller-supplied "YYYY-MM-DD" key in the service time zone.
// Rows are never deleted; history stays for analytics.
type DailyActivity struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_activity_key,priority:1"`
	Kind      string    `gorm:"size:32;not null;uniqueIndex:idx_activity_key,priority:2"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_activity_key,priority:3"`
	Count     int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Like statuses. Matched is terminal for the pair; passed rows only
// feed the liked-you exclusion filter.
const (
	LikeStatusPending = "pending"
	LikeStatusMatched = "matched"
	LikeStatusPassed  = "passed"
)

// Like represents a directed expression of interest, liker -> liked.
//
// Unique key (liker_id, liked_id):
//   - At most one row per ordered pair; re-likes hit the constraint and
//     are reported as already existing, never duplicated.
//
// Index idx_liked_status_updated(liked_id, status, updated_at DESC, liker_id):
//   - Serves "who liked me" listings with cursor pagination.
//
// The user ids are pointers: when a user is removed their references
// are nulled, not deleted, so historical counts survive. A nulled row
// can never satisfy the pending-reverse lookup again.
type Like struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	LikerID   *uint64   `gorm:"uniqueIndex:idx_like_pair,priority:1;index:idx_liked_status_updated,priority:4"`
	LikedID   *uint64   `gorm:"uniqueIndex:idx_like_pair,priority:2;index:idx_liked_status_updated,priority:1"`
	Status    string    `gorm:"size:16;not null;default:pending;index:idx_liked_status_updated,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_liked_status_updated,priority:3,sort:desc"`
}

// Match statuses.
const (
	MatchStatusActive    = "active"
	MatchStatusUnmatched = "unmatched"
	MatchStatusBlocked   = "blocked"
)

// Match is the durable, symmetric record created exactly once per user
// pair when mutual pending likes are detected.
//
// User1ID/User2ID are canonicalized (user1 < user2) before insert, so
// the unique key on the pair makes concurrent creation attempts collide
// regardless of which direction completed first. Ref is the public
// identifier handed to other systems.
type Match struct {
	ID                  uint64  `gorm:"primaryKey;autoIncrement"`
	Ref                 string  `gorm:"uniqueIndex;size:36;not null"`
	User1ID             *uint64 `gorm:"uniqueIndex:idx_match_pair,priority:1"`
	User2ID             *uint64 `gorm:"uniqueIndex:idx_match_pair,priority:2"`
	Status              string  `gorm:"size:16;not null;default:active"`
	MatchedAt           time.Time
	ConversationStarter string    `gorm:"size:512"`
	Compatibility       string    `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}
