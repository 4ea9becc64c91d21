package model

import "time"

// User is the directory record the engine consumes read-only: display name
// for read-models, role for authorization, token hash for the auth layer.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Nickname     *string   `db:"nickname" json:"nickname,omitempty"`
	Role         UserRole  `db:"role" json:"role"`
	APITokenHash string    `db:"api_token_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// DisplayName prefers the nickname, falling back to the username.
func (u *User) DisplayName() string {
	if u.Nickname != nil && *u.Nickname != "" {
		return *u.Nickname
	}
	return u.Username
}
