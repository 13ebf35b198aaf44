package models

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleClient   = "client"
	RoleProvider = "service_provider"
)

type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	Location      Point     `json:"location"`
	Skills        []string  `json:"skills,omitempty"`
	Rating        float64   `json:"rating"`
	CompletedJobs int       `json:"completed_jobs"`
	Verified      bool      `json:"verified"`
	Available     bool      `json:"available"`
	Banned        bool      `json:"banned"`
	Coins         int64     `json:"coins"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if len(strings.TrimSpace(u.Username)) < 3 {
		return errors.New("username too short")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if u.Role != RoleClient && u.Role != RoleProvider {
		return errors.New("role must be client or service_provider")
	}
	return nil
}

// NormalizeSkills lowercases and trims skill tags so matching is
// case-insensitive at query time.
func (u *User) NormalizeSkills() {
	out := u.Skills[:0]
	for _, s := range u.Skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	u.Skills = out
}

// ProviderContact is what a paid unlock reveals.
type ProviderContact struct {
	ProviderID string `json:"provider_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}
