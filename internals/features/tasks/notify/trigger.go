package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	taskModel "schoolcrm_backend/internals/features/tasks/model"
)

type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventRework        EventType = "rework"
	EventClosed        EventType = "closed"
	EventStatusChanged EventType = "status_changed"
)

// Event carries everything needed to build and address a message, so that
// delivery never has to go back to the store.
type Event struct {
	Type        EventType
	TaskID      uuid.UUID
	Title       string
	Description string
	CreatorID   uuid.UUID
	AssigneeIDs []uuid.UUID
	ActorID     uuid.UUID
	ActorName   string
	Comment     string
	Status      string
}

// Recipients is {creator} ∪ assignees minus the actor, in first-seen order.
func Recipients(creator uuid.UUID, assignees []uuid.UUID, actor uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{actor: true, uuid.Nil: true}
	out := make([]uuid.UUID, 0, len(assignees)+1)
	for _, id := range append([]uuid.UUID{creator}, assignees...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

var statusText = map[string]string{
	taskModel.StatusAssigned:   "Assigned",
	taskModel.StatusInProgress: "In progress",
	taskModel.StatusCompleted:  "Completed",
	taskModel.StatusOverdue:    "Overdue",
	taskModel.StatusRework:     "Rework",
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Compose renders subject and body. ok is false for unknown event types.
func Compose(ev Event) (subject, content string, ok bool) {
	author := orDefault(ev.ActorName, "System")
	desc := orDefault(ev.Description, "No description")

	switch ev.Type {
	case EventCreated:
		subject = "New task: " + ev.Title
		content = fmt.Sprintf("A new task was created:\n\n%s\n%s\nAuthor: %s\n\nOpen the task board to view it.",
			ev.Title, desc, author)
	case EventUpdated:
		subject = "Task updated: " + ev.Title
		content = fmt.Sprintf("The task was updated:\n\n%s\n%s\nChanged by: %s\n\nOpen the task board to see the changes.",
			ev.Title, desc, author)
	case EventRework:
		subject = "Task sent back for rework: " + ev.Title
		content = fmt.Sprintf("The task was sent back for rework:\n\n%s\nComment: %s\nReviewer: %s\n\nPlease address the comments and update the task status.",
			ev.Title, ev.Comment, author)
	case EventClosed:
		subject = "Task closed: " + ev.Title
		content = fmt.Sprintf("The task was closed:\n\n%s\nClosed by: %s\n\nThe task is finished and archived.",
			ev.Title, author)
	case EventStatusChanged:
		subject = "Task status changed: " + ev.Title
		content = fmt.Sprintf("The task status changed:\n\n%s\nNew status: %s\nChanged by: %s\n\nOpen the task board to view it.",
			ev.Title, orDefault(statusText[ev.Status], ev.Status), author)
	default:
		return "", "", false
	}
	return subject, content, true
}

// Trigger delivers events in the background. Failures are logged only.
type Trigger struct {
	Notifier Notifier
	Channels []string
	Timeout  time.Duration

	wg sync.WaitGroup
}

func NewTrigger(n Notifier, channels []string, timeout time.Duration) *Trigger {
	if n == nil {
		n = NoopNotifier{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Trigger{Notifier: n, Channels: channels, Timeout: timeout}
}

// Notify returns immediately; the send happens on its own goroutine with a
// fresh context so it outlives the request that caused it.
func (t *Trigger) Notify(ev Event) {
	if t == nil {
		return
	}
	recipients := Recipients(ev.CreatorID, ev.AssigneeIDs, ev.ActorID)
	if len(recipients) == 0 {
		return
	}
	subject, content, ok := Compose(ev)
	if !ok {
		log.Printf("[NOTIFY] unknown event type %q for task %s", ev.Type, ev.TaskID)
		return
	}
	msg := Message{Subject: subject, Content: content, Recipients: recipients, Channels: t.Channels}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[NOTIFY] panic while sending for task %s: %v", ev.TaskID, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
		defer cancel()
		if err := t.Notifier.Send(ctx, msg); err != nil {
			log.Printf("[NOTIFY] %s for task %s failed: %v", ev.Type, ev.TaskID, err)
			return
		}
		log.Printf("[NOTIFY] %s for task %s sent to %d recipient(s)", ev.Type, ev.TaskID, len(recipients))
	}()
}

// Wait blocks until every pending send has finished. Used on shutdown and in tests.
func (t *Trigger) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}
