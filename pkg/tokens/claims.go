package tokens

import "github.com/golang-jwt/jwt/v5"

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload of both token kinds. Refresh tokens only carry the
// user id; the profile fields stay empty.
type Claims struct {
	UserID uint   `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Kind   Kind   `json:"type"`
	jwt.RegisteredClaims
}

func AccessClaims(id uint, name, email, role string) Claims {
	return Claims{UserID: id, Name: name, Email: email, Role: role}
}

func RefreshClaims(id uint) Claims {
	return Claims{UserID: id}
}
