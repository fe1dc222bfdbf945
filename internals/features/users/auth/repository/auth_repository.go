package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	authModel "schoolcrm_backend/internals/features/users/auth/model"
)

/* ====================== BLACKLIST TOKEN ====================== */

func BlacklistToken(ctx context.Context, db *gorm.DB, token string, expiresAt time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&authModel.TokenBlacklist{
			Token:     token,
			ExpiredAt: expiresAt.UTC(),
		}).Error
}

func IsTokenBlacklisted(ctx context.Context, db *gorm.DB, token string) (bool, error) {
	var row authModel.TokenBlacklist
	err := db.WithContext(ctx).
		Select("id").
		Where("token = ?", token).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpiredBlacklist removes entries whose token expired before the cutoff.
func CleanupExpiredBlacklist(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expired_at <= ?", before.UTC()).
		Delete(&authModel.TokenBlacklist{})
	return res.RowsAffected, res.Error
}
