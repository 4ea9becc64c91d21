package model

import "time"

type SessionBan struct {
	ID             int64     `db:"id" json:"id"`
	ClassSessionID int64     `db:"class_session_id" json:"classSessionId"`
	UserID         int64     `db:"user_id" json:"userId"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	BannedBy       int64     `db:"banned_by" json:"bannedBy"`
	BannedAt       time.Time `db:"banned_at" json:"bannedAt"`
}

type CreateBanParams struct {
	ClassSessionID int64
	UserID         int64
	Reason         string
	BannedBy       int64
}
