package session

import "strings"

// PlaceholderUserID is used when no source provides a user id.
const PlaceholderUserID = "unknown"

// RoleType is the user's role as reported by the backend.
type RoleType string

const (
	RoleAdmin  RoleType = "admin"
	RoleUser   RoleType = "user"
	RoleViewer RoleType = "viewer"
)

type User struct {
	ID     string   `json:"id,omitempty"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Role   RoleType `json:"role,omitempty"`
	Avatar string   `json:"avatar,omitempty"`
}

// HasRole reports whether the user has role r.
func (u *User) HasRole(r RoleType) bool {
	return u != nil && u.Role == r
}

// MergeUser combines an incoming, possibly partial, user with the one
// already known. Empty incoming fields never overwrite non-empty existing
// ones. The id resolves through incoming user id, payloadUserID, existing
// id, then PlaceholderUserID; the first non-empty wins.
func MergeUser(existing, incoming *User, payloadUserID string) User {
	var prev, next User
	if existing != nil {
		prev = *existing
	}
	if incoming != nil {
		next = *incoming
	}

	return User{
		ID:     firstNonEmpty(next.ID, payloadUserID, prev.ID, PlaceholderUserID),
		Email:  firstNonEmpty(next.Email, prev.Email),
		Name:   firstNonEmpty(next.Name, prev.Name),
		Role:   RoleType(firstNonEmpty(string(next.Role), string(prev.Role))),
		Avatar: firstNonEmpty(next.Avatar, prev.Avatar),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
