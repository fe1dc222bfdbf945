package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authRepo "schoolcrm_backend/internals/features/users/auth/repository"
	userModel "schoolcrm_backend/internals/features/users/model"
)

const revokedKeyPrefix = "schoolcrm:revoked:"

// Claims carried by an access token. Role is informational; every request
// reloads the user and recomputes it.
type Claims struct {
	UserID string `json:"id"`
	Login  string `json:"login"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type TokenService struct {
	Secret []byte
	TTL    time.Duration
	DB     *gorm.DB
	Redis  *redis.Client
	Now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, db *gorm.DB, rdb *redis.Client) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		Secret: []byte(secret),
		TTL:    ttl,
		DB:     db,
		Redis:  rdb,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs an HS256 access token for u.
func (s *TokenService) Issue(u *userModel.UserModel) (string, time.Time, error) {
	now := s.Now()
	exp := now.Add(s.TTL)
	claims := Claims{
		UserID: u.ID.String(),
		Login:  u.Login,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature and expiry and returns the user id.
func (s *TokenService) Parse(token string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidToken
	}
	return id, claims, nil
}

// Revoke blacklists a token until it expires. The DB row is authoritative,
// redis is a fast-path mirror.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	exp := s.Now().Add(s.TTL)
	if _, claims, err := s.Parse(token); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	if err := authRepo.BlacklistToken(ctx, s.DB, token, exp); err != nil {
		return err
	}
	if s.Redis != nil {
		ttl := time.Until(exp)
		if ttl <= 0 {
			ttl = time.Minute
		}
		if err := s.Redis.Set(ctx, revokedKeyPrefix+token, "1", ttl).Err(); err != nil {
			log.Printf("[AUTH] redis revoke mirror failed: %v", err)
		}
	}
	return nil
}

func (s *TokenService) IsRevoked(ctx context.Context, token string) (bool, error) {
	if s.Redis != nil {
		n, err := s.Redis.Exists(ctx, revokedKeyPrefix+token).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		if err != nil && err != redis.Nil {
			log.Printf("[AUTH] redis lookup failed, falling back to DB: %v", err)
		}
	}
	return authRepo.IsTokenBlacklisted(ctx, s.DB, token)
}
