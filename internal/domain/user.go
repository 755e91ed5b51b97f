package domain

import "strings"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID        ID       `json:"id"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	FullName  string   `json:"fullName,omitempty"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	Avatar    string   `json:"avatar,omitempty"`
}

func (u User) IsAdmin() bool {
	return strings.EqualFold(string(u.Role), string(RoleAdmin))
}

// DisplayName prefers the backend full name and falls back to first + last.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
