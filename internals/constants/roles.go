package constants

import "fmt"

// Roles
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Auth sources
const (
	AuthTypeLocal    = "local"
	AuthTypeExternal = "external"
)

// Template pesan error role
const (
	ErrOnlyAdminsCanAccess = "Only admins may use %s."
	ErrTaskNotFound        = "Task not found or access denied"
	ErrFileNotFound        = "File not found or access denied"
)

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminsCanAccess, feature)
}

// ==========================
// ✅ Grouped Role Slices
// ==========================
var (
	AllRoles = []string{
		RoleTeacher,
		RoleAdmin,
	}

	AdminOnly = []string{
		RoleAdmin,
	}
)

// IsValidRole reports whether r is one of the closed role set.
func IsValidRole(r string) bool {
	for _, x := range AllRoles {
		if x == r {
			return true
		}
	}
	return false
}
