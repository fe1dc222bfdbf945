package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolcrm_backend/internals/configs"
	"schoolcrm_backend/internals/constants"
	"schoolcrm_backend/internals/directory"
	userModel "schoolcrm_backend/internals/features/users/model"
)

/* ==========================
   Authenticator
========================== */

type Authenticator struct {
	Dir           directory.Directory
	External      ExternalVerifier
	AllowedGroups []string
	EmailDomain   string
	Now           func() time.Time
}

func NewAuthenticator(dir directory.Directory, ext ExternalVerifier, cfg configs.ExternalAuthConfig) *Authenticator {
	return &Authenticator{
		Dir:           dir,
		External:      ext,
		AllowedGroups: cfg.AllowedGroups,
		EmailDomain:   cfg.EmailDomain,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate resolves credentials to a user. Local accounts are tried
// first, then the external directory. Any failure, including an unreachable
// directory, is ErrAuthFailed.
func (a *Authenticator) Authenticate(ctx context.Context, login, password string) (*userModel.UserModel, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrAuthFailed
	}

	existing, err := a.Dir.FindUserByLogin(ctx, login)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if existing != nil && existing.AuthType == constants.AuthTypeLocal {
		if CheckPassword(existing.PasswordHash, password) {
			log.Printf("[AUTH] local login ok: %s", login)
			return existing, nil
		}
	}

	if a.External == nil {
		return nil, ErrAuthFailed
	}
	ident, err := a.External.Verify(ctx, login, password)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			log.Printf("[AUTH] external directory error for %s: %v", login, err)
			return nil, fmt.Errorf("%w (%w)", ErrAuthFailed, err)
		}
		return nil, ErrAuthFailed
	}

	owner := existing
	if ident.Username != login {
		owner, err = a.Dir.FindUserByLogin(ctx, ident.Username)
		if err != nil && !errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
	}
	if owner != nil && owner.AuthType == constants.AuthTypeLocal {
		// A local account owns this login; external success must not take it over.
		log.Printf("[AUTH] external identity %s collides with a local account", ident.Username)
		return nil, ErrAuthFailed
	}

	return a.upsertExternal(ctx, ident)
}

func (a *Authenticator) upsertExternal(ctx context.Context, ident *ExternalIdentity) (*userModel.UserModel, error) {
	now := a.Now()
	name := strings.TrimSpace(ident.FullName)
	if name == "" {
		name = ident.Username
	}

	u := &userModel.UserModel{
		Login:       ident.Username,
		Name:        name,
		Email:       a.externalEmail(ident.Username),
		Role:        userModel.DeriveRole(ident.Groups, a.AllowedGroups),
		AuthType:    constants.AuthTypeExternal,
		Groups:      ident.Groups,
		Description: ident.Description,
		LastLogin:   &now,
	}

	stored, err := a.Dir.UpsertExternalUser(ctx, u)
	if errors.Is(err, directory.ErrDuplicate) {
		log.Printf("[AUTH] external login %s rejected: email %s belongs to another account", ident.Username, u.Email)
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, fmt.Errorf("upsert external user: %w", err)
	}
	log.Printf("[AUTH] external login ok: %s role=%s", stored.Login, stored.Role)
	return stored, nil
}

func (a *Authenticator) externalEmail(username string) string {
	domain := strings.TrimPrefix(strings.TrimSpace(a.EmailDomain), "@")
	if domain == "" {
		domain = "school25.ru"
	}
	return username + "@" + domain
}

// RefreshIdentity reloads a user for an identity check. An external user's
// role is recomputed from the stored groups and the current allow-list, and
// persisted when it changed.
func (a *Authenticator) RefreshIdentity(ctx context.Context, userID uuid.UUID) (*userModel.UserModel, error) {
	u, err := a.Dir.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsExternal() {
		return u, nil
	}

	role := userModel.DeriveRole(u.Groups, a.AllowedGroups)
	if role != u.Role {
		if err := a.Dir.UpdateUserRole(ctx, u.ID, role); err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
		log.Printf("[AUTH] role of %s changed %s -> %s", u.Login, u.Role, role)
		u.Role = role
	}
	return u, nil
}

// BootstrapLocalUsers creates the configured local accounts that do not exist
// yet and returns how many were created.
func (a *Authenticator) BootstrapLocalUsers(ctx context.Context, users []configs.BootstrapUser) (int, error) {
	created := 0
	for _, bu := range users {
		hash, err := HashPassword(bu.Password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", bu.Login, err)
		}
		role := bu.Role
		if !constants.IsValidRole(role) {
			role = constants.RoleTeacher
		}
		name := bu.Name
		if name == "" {
			name = bu.Login
		}
		email := bu.Email
		if email == "" {
			email = bu.Login + "@localhost"
		}

		ok, err := a.Dir.CreateUserIfNotExists(ctx, &userModel.UserModel{
			Login:        bu.Login,
			Name:         name,
			Email:        email,
			Role:         role,
			AuthType:     constants.AuthTypeLocal,
			PasswordHash: hash,
		})
		if err != nil {
			return created, fmt.Errorf("create user %s: %w", bu.Login, err)
		}
		if ok {
			created++
			log.Printf("[AUTH] bootstrap user created: %s", bu.Login)
		}
	}
	return created, nil
}
