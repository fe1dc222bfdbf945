package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schoolcrm_backend/internals/configs"
	"schoolcrm_backend/internals/constants"
	database "schoolcrm_backend/internals/databases"
	"schoolcrm_backend/internals/directory"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeDirectoryServer answers like the external directory. groups is read on
// every request so tests can change membership between logins.
func fakeDirectoryServer(t *testing.T, password string, groups *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if body.Password != password {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"username":    body.Username,
			"full_name":   "Ivan Petrov",
			"groups":      *groups,
			"description": "Math teacher",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthenticator(t *testing.T, url string) *Authenticator {
	dir := directory.NewGormDirectory(setupTestDB(t))
	return NewAuthenticator(dir, NewHTTPDirectoryClient(url, 2*time.Second), configs.ExternalAuthConfig{
		AllowedGroups: configs.ParseAllowList(" Admins , Directors"),
		EmailDomain:   "school25.ru",
	})
}

func TestAuthenticateLocalUser(t *testing.T) {
	a := newTestAuthenticator(t, "")
	ctx := context.Background()

	n, err := a.BootstrapLocalUsers(ctx, []configs.BootstrapUser{{Login: "teacher1", Password: "secret", Name: "T One", Email: "t1@example.com"}})
	if err != nil || n != 1 {
		t.Fatalf("bootstrap: n=%d err=%v", n, err)
	}
	if n, _ := a.BootstrapLocalUsers(ctx, []configs.BootstrapUser{{Login: "teacher1", Password: "other"}}); n != 0 {
		t.Fatalf("bootstrap must skip existing users, created %d", n)
	}

	u, err := a.Authenticate(ctx, "teacher1", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Role != constants.RoleTeacher || u.AuthType != constants.AuthTypeLocal {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := a.Authenticate(ctx, "teacher1", "wrong"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestExternalRoleIsRecomputedOnEveryLogin(t *testing.T) {
	groups := []string{"Teachers", "Admins"}
	srv := fakeDirectoryServer(t, "pw", &groups)
	a := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	u, err := a.Authenticate(ctx, "ivan", "pw")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if u.Role != constants.RoleAdmin {
		t.Fatalf("expected admin, got %s", u.Role)
	}
	if u.Email != "ivan@school25.ru" || u.Name != "Ivan Petrov" || u.AuthType != constants.AuthTypeExternal {
		t.Fatalf("unexpected external user: %+v", u)
	}

	groups = []string{"Teachers"}
	u2, err := a.Authenticate(ctx, "ivan", "pw")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if u2.ID != u.ID {
		t.Fatalf("external login created a second user")
	}
	if u2.Role != constants.RoleTeacher {
		t.Fatalf("role must drop to teacher after leaving the group, got %s", u2.Role)
	}
}

func TestAllowListIsCaseSensitive(t *testing.T) {
	groups := []string{"admins"}
	srv := fakeDirectoryServer(t, "pw", &groups)
	a := newTestAuthenticator(t, srv.URL)

	u, err := a.Authenticate(context.Background(), "petr", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Role != constants.RoleTeacher {
		t.Fatalf("lower-case group must not match allow-list, got %s", u.Role)
	}
}

func TestRefreshIdentityDowngradesRole(t *testing.T) {
	groups := []string{"Directors"}
	srv := fakeDirectoryServer(t, "pw", &groups)
	a := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	u, err := a.Authenticate(ctx, "olga", "pw")
	if err != nil || u.Role != constants.RoleAdmin {
		t.Fatalf("login: role=%v err=%v", u, err)
	}

	// Directors removed from the allow-list after the login.
	a.AllowedGroups = []string{"Admins"}
	refreshed, err := a.RefreshIdentity(ctx, u.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Role != constants.RoleTeacher {
		t.Fatalf("expected teacher after refresh, got %s", refreshed.Role)
	}
	stored, err := a.Dir.FindUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Role != constants.RoleTeacher {
		t.Fatalf("refreshed role not persisted: %s", stored.Role)
	}
}

func TestExternalFailuresFailClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	a := newTestAuthenticator(t, srv.URL)

	_, err := a.Authenticate(context.Background(), "anyone", "pw")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream cause to be kept, got %v", err)
	}
}

func TestExternalLoginCannotShadowLocalAccount(t *testing.T) {
	groups := []string{"Admins"}
	srv := fakeDirectoryServer(t, "ldap-pw", &groups)
	a := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	if _, err := a.BootstrapLocalUsers(ctx, []configs.BootstrapUser{{Login: "anna", Password: "local-pw", Email: "anna@example.com"}}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, err := a.Authenticate(ctx, "anna", "ldap-pw"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	stored, err := a.Dir.FindUserByLogin(ctx, "anna")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.AuthType != constants.AuthTypeLocal || stored.Role != constants.RoleTeacher {
		t.Fatalf("local account was modified: %+v", stored)
	}
}

func TestTokenIssueParseRevoke(t *testing.T) {
	db := setupTestDB(t)
	a := NewAuthenticator(directory.NewGormDirectory(db), nil, configs.ExternalAuthConfig{})
	ctx := context.Background()
	if _, err := a.BootstrapLocalUsers(ctx, []configs.BootstrapUser{{Login: "u1", Password: "pw"}}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	svc := NewAuthService(a, NewTokenService("test-secret", time.Hour, db, nil))
	res, err := svc.Login(ctx, "u1", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, _, err := svc.Tokens.Parse(res.Token)
	if err != nil || id != res.User.ID {
		t.Fatalf("parse: id=%s err=%v", id, err)
	}
	if _, _, err := NewTokenService("other-secret", time.Hour, db, nil).Parse(res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret must be rejected, got %v", err)
	}

	if revoked, _ := svc.Tokens.IsRevoked(ctx, res.Token); revoked {
		t.Fatalf("fresh token reported revoked")
	}
	if err := svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("second logout must be idempotent: %v", err)
	}
	if revoked, err := svc.Tokens.IsRevoked(ctx, res.Token); err != nil || !revoked {
		t.Fatalf("expected revoked token: revoked=%v err=%v", revoked, err)
	}
}

func TestExternalEmailCollisionIsAuthFailure(t *testing.T) {
	groups := []string{"Teachers"}
	srv := fakeDirectoryServer(t, "ldap-pw", &groups)
	a := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	if _, err := a.BootstrapLocalUsers(ctx, []configs.BootstrapUser{{Login: "ipetrov", Password: "local-pw", Email: "ivan@school25.ru"}}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, err := a.Authenticate(ctx, "ivan", "ldap-pw"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed on email collision, got %v", err)
	}
	if _, err := a.Dir.FindUserByLogin(ctx, "ivan"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("colliding external user must not be stored: %v", err)
	}
}
