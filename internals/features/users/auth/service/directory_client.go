package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

// ExternalIdentity is what the external directory returns for valid credentials.
type ExternalIdentity struct {
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	Groups      []string `json:"groups"`
	Description string   `json:"description"`
}

type ExternalVerifier interface {
	// Verify returns the identity for valid credentials, ErrAuthFailed for
	// rejected ones and an ErrUpstreamUnavailable-wrapped error when the
	// service could not be asked.
	Verify(ctx context.Context, login, password string) (*ExternalIdentity, error)
}

type directoryResponse struct {
	Success bool `json:"success"`
	ExternalIdentity
}

// HTTPDirectoryClient posts {username, password} as JSON to the directory
// service and reads back {success, username, full_name, groups, description}.
type HTTPDirectoryClient struct {
	URL     string
	Timeout time.Duration
}

func NewHTTPDirectoryClient(url string, timeout time.Duration) *HTTPDirectoryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDirectoryClient{URL: strings.TrimSpace(url), Timeout: timeout}
}

func (c *HTTPDirectoryClient) Verify(ctx context.Context, login, password string) (*ExternalIdentity, error) {
	if c == nil || c.URL == "" {
		return nil, fmt.Errorf("%w: LDAP_AUTH_URL is not configured", ErrUpstreamUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	payload, err := sonic.Marshal(fiber.Map{"username": login, "password": password})
	if err != nil {
		return nil, err
	}

	agent := fiber.Post(c.URL).
		Timeout(c.Timeout).
		ContentType(fiber.MIMEApplicationJSON).
		Body(payload)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, errs[0])
	}
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, code)
	}

	var resp directoryResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}
	if !resp.Success {
		return nil, ErrAuthFailed
	}

	id := resp.ExternalIdentity
	if strings.TrimSpace(id.Username) == "" {
		id.Username = login
	}
	if id.Groups == nil {
		id.Groups = []string{}
	}
	return &id, nil
}
