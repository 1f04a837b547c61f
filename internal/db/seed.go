package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// plans cycled through while seeding, weighted toward free accounts.
var seedPlans = []struct {
	plan   string
	status string
}{
	{"", ""},
	{"", ""},
	{"basic", "active"},
	{"gold", "active"},
	{"platinum", "active"},
	{"basic", "cancelled"},
}

// SeedTestData resets the database and populates it with demo users and
// pending likes.
//
// Behavior:
//  1. Clears `users`, `likes`, `matches` and `daily_activities`.
//  2. Creates 20 users spread across subscription plans (including a
//     cancelled one and an expired one, which both resolve to free).
//  3. Generates ~100 pending likes with every 4th reciprocated, so the
//     engine has mutual pairs to promote on first contact.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"likes", "matches", "daily_activities", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE likes AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('users', 'likes', 'matches')")
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	for i := 1; i <= 20; i++ {
		p := seedPlans[i%len(seedPlans)]

		var expiresAt *time.Time
		if p.plan != "" {
			exp := time.Now().Add(30 * 24 * time.Hour)
			if i == 5 {
				// one expired-subscription account
				exp = time.Now().Add(-24 * time.Hour)
			}
			expiresAt = &exp
		}

		gender := "male"
		if i > 10 {
			gender = "female"
		}

		user := User{
			Username:      fmt.Sprintf("user%d", i),
			Email:         fmt.Sprintf("user%d@example.com", i),
			PasswordHash:  string(hash),
			Gender:        gender,
			Plan:          p.plan,
			PlanStatus:    p.status,
			PlanExpiresAt: expiresAt,
			Active:        true,
			LastLoginAt:   time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	seeded := 0
	for likerID := uint64(1); likerID <= 20; likerID++ {
		for j := 0; j < 5; j++ {
			likedID := uint64(r.Intn(20) + 1)
			if likedID == likerID {
				continue
			}

			liker, liked := likerID, likedID
			like := Like{LikerID: &liker, LikedID: &liked, Status: LikeStatusPending}
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
			if res.Error != nil {
				return fmt.Errorf("failed to seed like: %w", res.Error)
			}
			seeded++

			// every 4th like gets reciprocated so mutual pairs exist
			if seeded%4 == 0 {
				back := Like{LikerID: &liked, LikedID: &liker, Status: LikeStatusPending}
				if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&back).Error; err != nil {
					return fmt.Errorf("failed to seed reciprocal like: %w", err)
				}
			}
		}
	}
	log.Printf("Seeded %d likes.", seeded)

	return nil
}
