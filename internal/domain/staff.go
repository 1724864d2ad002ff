package domain

// Role is an account role held in the staff directory.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleModerator:
		return true
	}
	return false
}

// Staff is a back-office account as seen by the support console.
type Staff struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
}

// CanUseConsole reports whether the account may work live chats.
func (s Staff) CanUseConsole() bool {
	return s.Role == RoleStaff || s.Role == RoleModerator
}

// Name returns the label shown to visitors.
func (s Staff) Name() string {
	switch {
	case s.DisplayName != "":
		return s.DisplayName
	case s.Email != "":
		return s.Email
	default:
		return "Staff"
	}
}
