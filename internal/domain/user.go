package domain

import "time"

// User es el registro de credenciales de una cuenta.
type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email,omitempty"`
	PasswordHash         string     `json:"-"`
	EmailConfirmed       bool       `json:"email_confirmed"`
	ResetToken           string     `json:"-"`
	ResetTokenExpiration *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HasPendingReset indica si hay un token de reset emitido sin consumir.
func (u User) HasPendingReset() bool {
	return u.ResetToken != "" && u.ResetTokenExpiration != nil
}
