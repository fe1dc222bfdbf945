package dto

import (
	"time"

	"github.com/google/uuid"

	userModel "schoolcrm_backend/internals/features/users/model"
)

// UserResponse is the public shape of a user. Password hashes and directory
// groups never leave the server.
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Login       string     `json:"login"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	AuthType    string     `json:"auth_type"`
	Description string     `json:"description,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func FromModel(u *userModel.UserModel) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Login:       u.Login,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		AuthType:    u.AuthType,
		Description: u.Description,
		LastLogin:   u.LastLogin,
	}
}

func FromModels(users []userModel.UserModel) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, FromModel(&users[i]))
	}
	return out
}
