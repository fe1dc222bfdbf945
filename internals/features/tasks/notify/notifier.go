// Package notify turns task lifecycle events into outbound notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"schoolcrm_backend/internals/configs"
)

// Message is one outbound notification.
type Message struct {
	Subject    string
	Content    string
	Recipients []uuid.UUID
	Channels   []string
}

type Notifier interface {
	Send(ctx context.Context, m Message) error
}

var ErrDeliveryFailed = errors.New("notification delivery failed")

// HTTPNotifier posts a multipart form protected by HTTP Basic auth.
type HTTPNotifier struct {
	URL      string
	Login    string
	Password string
	Timeout  time.Duration
}

func NewHTTPNotifier(cfg configs.NotificationConfig) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{URL: cfg.URL, Login: cfg.Login, Password: cfg.Password, Timeout: timeout}
}

func (n *HTTPNotifier) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids := make([]string, 0, len(m.Recipients))
	for _, id := range m.Recipients {
		ids = append(ids, id.String())
	}
	recipients, err := sonic.MarshalString(ids)
	if err != nil {
		return err
	}
	channels, err := sonic.MarshalString(m.Channels)
	if err != nil {
		return err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("subject", m.Subject)
	args.Set("content", m.Content)
	args.Set("recipients", recipients)
	args.Set("deliveryMethods", channels)

	agent := fiber.Post(n.URL).
		Timeout(n.Timeout).
		BasicAuth(n.Login, n.Password).
		MultipartForm(args)

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, errs[0])
	}
	if code < 200 || code > 299 {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, code)
	}
	return nil
}

// NoopNotifier is used when the notification service is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(_ context.Context, m Message) error {
	log.Printf("[NOTIFY] service not configured, dropping %q for %d recipient(s)", m.Subject, len(m.Recipients))
	return nil
}

// NewNotifier picks the HTTP notifier when URL and credentials are set.
func NewNotifier(cfg configs.NotificationConfig) Notifier {
	if !cfg.Enabled() {
		return NoopNotifier{}
	}
	return NewHTTPNotifier(cfg)
}
