package users

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"schoolcrm_backend/internals/configs"
)

type UserSeed struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Bootstrapper is satisfied by the authenticator.
type Bootstrapper interface {
	BootstrapLocalUsers(ctx context.Context, users []configs.BootstrapUser) (int, error)
}

// LoadUsersFromJSON reads a seed file. Entries without a login or password are skipped.
func LoadUsersFromJSON(filePath string) ([]configs.BootstrapUser, error) {
	log.Println("[SEED] reading users from", filePath)

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var inputs []UserSeed
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	out := make([]configs.BootstrapUser, 0, len(inputs))
	for i, in := range inputs {
		login := strings.TrimSpace(in.Login)
		if login == "" || in.Password == "" {
			log.Printf("[SEED] entry %d skipped: login and password are required", i)
			continue
		}
		out = append(out, configs.BootstrapUser{
			Login:    login,
			Password: in.Password,
			Name:     strings.TrimSpace(in.Name),
			Email:    strings.TrimSpace(in.Email),
			Role:     strings.ToLower(strings.TrimSpace(in.Role)),
		})
	}
	return out, nil
}

// SeedUsersFromJSON creates the local accounts listed in filePath that do not exist yet.
func SeedUsersFromJSON(ctx context.Context, b Bootstrapper, filePath string) (int, error) {
	users, err := LoadUsersFromJSON(filePath)
	if err != nil {
		return 0, err
	}
	n, err := b.BootstrapLocalUsers(ctx, users)
	if err != nil {
		return n, err
	}
	log.Printf("[SEED] %d of %d user(s) created", n, len(users))
	return n, nil
}
