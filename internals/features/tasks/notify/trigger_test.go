package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"schoolcrm_backend/internals/configs"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return r.err
}

func TestRecipientsExcludeActor(t *testing.T) {
	creator, b, c := uuid.New(), uuid.New(), uuid.New()

	got := Recipients(creator, []uuid.UUID{b, c, creator}, b)
	if len(got) != 2 || got[0] != creator || got[1] != c {
		t.Fatalf("unexpected recipients: %v", got)
	}

	if got := Recipients(creator, nil, creator); len(got) != 0 {
		t.Fatalf("actor-only task must have no recipients, got %v", got)
	}
}

func TestTriggerSkipsEmptyRecipientSet(t *testing.T) {
	rec := &recordingNotifier{}
	tr := NewTrigger(rec, []string{"email"}, time.Second)
	actor := uuid.New()

	tr.Notify(Event{Type: EventCreated, TaskID: uuid.New(), Title: "Report", CreatorID: actor, ActorID: actor})
	tr.Wait()

	if len(rec.sent) != 0 {
		t.Fatalf("expected no call, got %d", len(rec.sent))
	}
}

func TestTriggerSwallowsDeliveryErrors(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("boom")}
	tr := NewTrigger(rec, []string{"email"}, time.Second)

	tr.Notify(Event{Type: EventClosed, TaskID: uuid.New(), Title: "Report", CreatorID: uuid.New(), ActorID: uuid.New()})
	tr.Wait()

	if len(rec.sent) != 1 {
		t.Fatalf("expected one attempt, got %d", len(rec.sent))
	}
	if !strings.HasPrefix(rec.sent[0].Subject, "Task closed") {
		t.Fatalf("unexpected subject %q", rec.sent[0].Subject)
	}
}

func TestComposeStatusChangedUsesReadableStatus(t *testing.T) {
	_, content, ok := Compose(Event{Type: EventStatusChanged, Title: "Report", Status: "in_progress", ActorName: "Bob"})
	if !ok {
		t.Fatalf("status_changed must compose")
	}
	if !strings.Contains(content, "In progress") || !strings.Contains(content, "Bob") {
		t.Fatalf("unexpected content %q", content)
	}
	if _, _, ok := Compose(Event{Type: "nope"}); ok {
		t.Fatalf("unknown type must not compose")
	}
}

func TestHTTPNotifierSendsBasicAuthMultipart(t *testing.T) {
	var (
		mu       sync.Mutex
		gotUser  string
		gotPass  string
		gotForm  map[string]string
		requests int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requests++
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotForm = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotForm[k] = v[0]
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier(configs.NotificationConfig{URL: srv.URL, Login: "svc", Password: "secret", Timeout: 2 * time.Second})
	recipient := uuid.New()
	err := n.Send(context.Background(), Message{
		Subject:    "New task: Report",
		Content:    "body",
		Recipients: []uuid.UUID{recipient},
		Channels:   []string{"email", "telegram"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if requests != 1 || gotUser != "svc" || gotPass != "secret" {
		t.Fatalf("unexpected auth: requests=%d user=%q pass=%q", requests, gotUser, gotPass)
	}
	if gotForm["subject"] != "New task: Report" || gotForm["content"] != "body" {
		t.Fatalf("unexpected form: %v", gotForm)
	}
	var ids []string
	if err := json.Unmarshal([]byte(gotForm["recipients"]), &ids); err != nil || len(ids) != 1 || ids[0] != recipient.String() {
		t.Fatalf("unexpected recipients field %q", gotForm["recipients"])
	}
	var channels []string
	if err := json.Unmarshal([]byte(gotForm["deliveryMethods"]), &channels); err != nil || len(channels) != 2 {
		t.Fatalf("unexpected deliveryMethods field %q", gotForm["deliveryMethods"])
	}
}

func TestHTTPNotifierReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(configs.NotificationConfig{URL: srv.URL, Login: "a", Password: "b"})
	err := n.Send(context.Background(), Message{Subject: "s", Recipients: []uuid.UUID{uuid.New()}})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestUnconfiguredNotifierIsNoop(t *testing.T) {
	if _, ok := NewNotifier(configs.NotificationConfig{}).(NoopNotifier); !ok {
		t.Fatalf("expected NoopNotifier when URL is empty")
	}
}
