package builder

import (
	"errors"
	"time"
)

// ErrNotFound is returned by every store driver when no builder matches.
var ErrNotFound = errors.New("builder not found")

// Builder is the stored record. JoinDate is epoch milliseconds.
type Builder struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	JoinDate     int64  `json:"join_date"`
	PasswordHash string `json:"-"` // never expose hash in JSON
}

// Profile is the public view sent to clients. It is built by explicit
// projection so the password hash can never leak through serialization.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	JoinDateHuman string `json:"join_date_human"`
	Token         string `json:"token,omitempty"`
}

// PublicProfile projects the stored record into its client-facing shape.
func (b Builder) PublicProfile() Profile {
	return Profile{
		ID:            b.ID,
		Email:         b.Email,
		FullName:      b.FullName,
		JoinDateHuman: HumanDate(b.JoinDate),
	}
}

// WithToken returns a copy of the profile carrying a freshly issued token.
func (p Profile) WithToken(token string) Profile {
	p.Token = token
	return p
}

// HumanDate renders an epoch-millisecond timestamp as a short date,
// e.g. "Fri Aug 29 2025".
func HumanDate(ms int64) string {
	return time.UnixMilli(ms).Format("Mon Jan 2 2006")
}
