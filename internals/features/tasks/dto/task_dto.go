// file: internals/features/tasks/dto/task_dto.go
package dto

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"schoolcrm_backend/internals/features/tasks/service"
	helper "schoolcrm_backend/internals/helpers"
	"schoolcrm_backend/internals/helpers/dbtime"
)

/* =========================================================
   Shared helpers
   ========================================================= */

func badField(field, msg string) error {
	return &service.ValidationError{Field: field, Message: msg}
}

func date(field string, raw *string) (*time.Time, error) {
	v, err := dbtime.ParseDatePtr(raw)
	if err != nil {
		return nil, badField(field, "invalid date, expected YYYY-MM-DD or RFC3339")
	}
	return v, nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

/* =========================================================
   Assignees
   ========================================================= */

type AssigneeRequest struct {
	UserID    string  `json:"user_id" validate:"required,uuid"`
	StartDate *string `json:"start_date"`
	DueDate   *string `json:"due_date"`
}

// assigneeInputs merges the plain id list and the detailed list. The
// second form wins for a user present in both.
func assigneeInputs(ids []string, detailed []AssigneeRequest) ([]service.AssigneeInput, error) {
	out := make([]service.AssigneeInput, 0, len(ids)+len(detailed))
	for _, raw := range ids {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, badField("assigned_users", "invalid user id "+raw)
		}
		out = append(out, service.AssigneeInput{UserID: id})
	}
	for _, a := range detailed {
		id, err := uuid.Parse(strings.TrimSpace(a.UserID))
		if err != nil {
			return nil, badField("assignees", "invalid user id "+a.UserID)
		}
		start, err := date("assignees.start_date", a.StartDate)
		if err != nil {
			return nil, err
		}
		due, err := date("assignees.due_date", a.DueDate)
		if err != nil {
			return nil, err
		}
		in := service.AssigneeInput{UserID: id, StartDate: start, DueDate: due}

		replaced := false
		for i := range out {
			if out[i].UserID == id {
				out[i] = in
				replaced = true
			}
		}
		if !replaced {
			out = append(out, in)
		}
	}
	return out, nil
}

/* =========================================================
   Requests: CREATE / UPDATE
   ========================================================= */

type TaskRequest struct {
	Title         string            `json:"title" validate:"required,max=255"`
	Description   string            `json:"description" validate:"max=20000"`
	StartDate     *string           `json:"start_date"`
	DueDate       *string           `json:"due_date"`
	AssignedUsers []string          `json:"assigned_users" validate:"omitempty,dive,uuid"`
	Assignees     []AssigneeRequest `json:"assignees" validate:"omitempty,dive"`

	// set by ParseTaskForm, or when either list was present in JSON
	assigneesGiven bool
}

func (r *TaskRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.StartDate = trimPtr(r.StartDate)
	r.DueDate = trimPtr(r.DueDate)
	if r.AssignedUsers != nil || r.Assignees != nil {
		r.assigneesGiven = true
	}
}

// AssigneesGiven reports whether the request carried an assignee list at all.
func (r *TaskRequest) AssigneesGiven() bool { return r.assigneesGiven }

func (r *TaskRequest) dates() (start, due *time.Time, err error) {
	if start, err = date("start_date", r.StartDate); err != nil {
		return nil, nil, err
	}
	if due, err = date("due_date", r.DueDate); err != nil {
		return nil, nil, err
	}
	return start, due, nil
}

func (r *TaskRequest) ToCreateInput(files []service.Upload) (service.CreateInput, error) {
	start, due, err := r.dates()
	if err != nil {
		return service.CreateInput{}, err
	}
	assignees, err := assigneeInputs(r.AssignedUsers, r.Assignees)
	if err != nil {
		return service.CreateInput{}, err
	}
	return service.CreateInput{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   start,
		DueDate:     due,
		Assignees:   assignees,
		Files:       files,
	}, nil
}

// ToUpdateInput leaves Assignees nil when no list was sent, which keeps the
// current assignments.
func (r *TaskRequest) ToUpdateInput(files []service.Upload) (service.UpdateInput, error) {
	start, due, err := r.dates()
	if err != nil {
		return service.UpdateInput{}, err
	}
	in := service.UpdateInput{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   start,
		DueDate:     due,
		Files:       files,
	}
	if r.assigneesGiven {
		if in.Assignees, err = assigneeInputs(r.AssignedUsers, r.Assignees); err != nil {
			return service.UpdateInput{}, err
		}
		if in.Assignees == nil {
			in.Assignees = []service.AssigneeInput{}
		}
	}
	return in, nil
}

// ParseTaskForm reads a multipart task form. assigned_users may be repeated
// or one JSON array; assignees is a JSON array of objects.
func ParseTaskForm(form *multipart.Form) (TaskRequest, error) {
	var r TaskRequest
	first := func(key string) string {
		if vs := helper.FormValues(form, key); len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	optional := func(key string) *string {
		if vs := helper.FormValues(form, key); len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}

	r.Title = first("title")
	r.Description = first("description")
	r.StartDate = optional("start_date")
	r.DueDate = optional("due_date")

	if vs := helper.FormValues(form, "assigned_users"); vs != nil {
		r.assigneesGiven = true
		r.AssignedUsers = []string{}
		for _, v := range vs {
			v = strings.TrimSpace(v)
			switch {
			case v == "":
			case strings.HasPrefix(v, "["):
				var ids []string
				if err := sonic.UnmarshalString(v, &ids); err != nil {
					return r, badField("assigned_users", "must be a JSON array of user ids")
				}
				r.AssignedUsers = append(r.AssignedUsers, ids...)
			default:
				r.AssignedUsers = append(r.AssignedUsers, strings.Split(v, ",")...)
			}
		}
	}
	if v := strings.TrimSpace(first("assignees")); v != "" {
		r.assigneesGiven = true
		if err := sonic.UnmarshalString(v, &r.Assignees); err != nil {
			return r, badField("assignees", "must be a JSON array of {user_id, start_date, due_date}")
		}
	}

	r.Normalize()
	return r, nil
}

/* =========================================================
   Requests: COPY / REWORK / ASSIGNMENT / STATUS
   ========================================================= */

type CopyRequest struct {
	StartDate     *string           `json:"start_date"`
	DueDate       *string           `json:"due_date"`
	AssignedUsers []string          `json:"assigned_users" validate:"omitempty,dive,uuid"`
	Assignees     []AssigneeRequest `json:"assignees" validate:"omitempty,dive"`
}

func (r *CopyRequest) ToInput() (service.CopyInput, error) {
	start, err := date("start_date", trimPtr(r.StartDate))
	if err != nil {
		return service.CopyInput{}, err
	}
	due, err := date("due_date", trimPtr(r.DueDate))
	if err != nil {
		return service.CopyInput{}, err
	}
	assignees, err := assigneeInputs(r.AssignedUsers, r.Assignees)
	if err != nil {
		return service.CopyInput{}, err
	}
	return service.CopyInput{StartDate: start, DueDate: due, Assignees: assignees}, nil
}

type ReworkRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
}

type AssignmentDatesRequest struct {
	StartDate *string `json:"start_date"`
	DueDate   *string `json:"due_date"`
}

func (r *AssignmentDatesRequest) Parse() (start, due *time.Time, err error) {
	if start, err = date("start_date", trimPtr(r.StartDate)); err != nil {
		return nil, nil, err
	}
	if due, err = date("due_date", trimPtr(r.DueDate)); err != nil {
		return nil, nil, err
	}
	return start, due, nil
}

type StatusRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// Target parses user_id; a missing or malformed id is a validation error.
func (r *StatusRequest) Target() (uuid.UUID, error) {
	raw := strings.TrimSpace(r.UserID)
	if raw == "" {
		return uuid.Nil, badField("user_id", "user_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badField("user_id", "user_id must be a valid UUID")
	}
	return id, nil
}
