package scheduler

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	authRepo "schoolcrm_backend/internals/features/users/auth/repository"
)

// BlacklistCleanupJob purges revoked tokens that expired more than graceDays ago.
func BlacklistCleanupJob(db *gorm.DB, graceDays int) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		log.Println("[CLEANUP] purging expired token_blacklist entries...")
		before := time.Now().UTC().Add(-time.Duration(graceDays) * 24 * time.Hour)

		n, err := authRepo.CleanupExpiredBlacklist(ctx, db, before)
		if err != nil {
			log.Printf("[CLEANUP ERROR] %v", err)
			return
		}
		log.Printf("[CLEANUP] %d expired tokens removed", n)
	}
}
