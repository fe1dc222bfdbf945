package users

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"schoolcrm_backend/internals/configs"
)

type fakeBootstrapper struct{ got []configs.BootstrapUser }

func (f *fakeBootstrapper) BootstrapLocalUsers(_ context.Context, users []configs.BootstrapUser) (int, error) {
	f.got = users
	return len(users), nil
}

func TestSeedUsersFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	data := `[
		{"login": " admin ", "password": "secret", "role": "Admin"},
		{"login": "teacher1", "password": "pw", "name": "Teacher One"},
		{"login": "", "password": "x"},
		{"login": "nopass"}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	fb := &fakeBootstrapper{}
	n, err := SeedUsersFromJSON(context.Background(), fb, path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 2 || len(fb.got) != 2 {
		t.Fatalf("want 2 users, got n=%d %+v", n, fb.got)
	}
	if fb.got[0].Login != "admin" || fb.got[0].Role != "admin" {
		t.Fatalf("first entry not normalized: %+v", fb.got[0])
	}
	if fb.got[1].Name != "Teacher One" {
		t.Fatalf("second entry = %+v", fb.got[1])
	}
}

func TestSeedUsersBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadUsersFromJSON(path); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := LoadUsersFromJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected read error")
	}
}
