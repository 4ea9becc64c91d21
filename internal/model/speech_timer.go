package model

import "time"

type SpeechTimer struct {
	ID             int64      `db:"id" json:"id"`
	ClassSessionID int64      `db:"class_session_id" json:"classSessionId"`
	UserID         int64      `db:"user_id" json:"userId"`
	DurationSec    int        `db:"duration_sec" json:"durationSec"`
	StartedAt      time.Time  `db:"started_at" json:"startedAt"`
	EndedAt        *time.Time `db:"ended_at" json:"endedAt,omitempty"`
}

// ActiveTimer is the snapshot view of the open timer, enriched with the
// speaker's display name.
type ActiveTimer struct {
	UserID      int64     `db:"user_id" json:"userId"`
	Nickname    string    `db:"nickname" json:"nickname"`
	DurationSec int       `db:"duration_sec" json:"durationSec"`
	StartedAt   time.Time `db:"started_at" json:"startedAt"`
}

type CreateTimerParams struct {
	ClassSessionID int64
	UserID         int64
	DurationSec    int
}
