package transport

import (
	"errors"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Skotchmaster/medisync/internal/models"
)

// bcrypt ignores everything past 72 bytes
const maxPasswordLen = 72

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(2, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, maxPasswordLen),
			validation.By(passwordComplexity),
		),
		validation.Field(&r.Role,
			validation.Required,
			validation.In(models.RolePatient, models.RoleDoctor).Error("must be either patient or doctor"),
		),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func passwordComplexity(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	var lower, upper, digit bool
	for _, ch := range s {
		switch {
		case unicode.IsLower(ch):
			lower = true
		case unicode.IsUpper(ch):
			upper = true
		case unicode.IsDigit(ch):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return errors.New("must contain at least one lowercase letter, one uppercase letter, and one number")
	}
	return nil
}

// Trim strips surrounding whitespace from the name and email before
// validation so that " a@x.com" is accepted.
func (r *RegisterRequest) Trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *LoginRequest) Trim() {
	r.Email = strings.TrimSpace(r.Email)
}

type UserView struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserView(u *models.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// IdentityView is the caller as seen by the gate, read from the access token.
type IdentityView struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthResponse struct {
	Message      string   `json:"message,omitempty"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int      `json:"expiresIn"`
	User         UserView `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}
