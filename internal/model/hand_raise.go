package model

import "time"

type HandRaise struct {
	ID             int64           `db:"id" json:"id"`
	ClassSessionID int64           `db:"class_session_id" json:"classSessionId"`
	UserID         int64           `db:"user_id" json:"userId"`
	Status         HandRaiseStatus `db:"status" json:"status"`
	RaisedAt       time.Time       `db:"raised_at" json:"raisedAt"`
	SpeakingAt     *time.Time      `db:"speaking_at" json:"speakingAt,omitempty"`
	EndedAt        *time.Time      `db:"ended_at" json:"endedAt,omitempty"`
}

// QueueEntry is the read-model row for the visible queue: the hand raise
// joined with the speaker's display name.
type QueueEntry struct {
	ID       int64           `db:"id" json:"id"`
	UserID   int64           `db:"user_id" json:"userId"`
	Nickname string          `db:"nickname" json:"nickname"`
	Status   HandRaiseStatus `db:"status" json:"status"`
	RaisedAt time.Time       `db:"raised_at" json:"raisedAt"`
}
