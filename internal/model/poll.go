package model

import "time"

type Poll struct {
	ID             int64      `db:"id" json:"id"`
	ClassSessionID int64      `db:"class_session_id" json:"classSessionId"`
	Question       string     `db:"question" json:"question"`
	Type           PollType   `db:"type" json:"type"`
	Anonymous      bool       `db:"anonymous" json:"anonymous"`
	Status         PollStatus `db:"status" json:"status"`
	CreatedBy      int64      `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

type PollOption struct {
	ID     int64  `db:"id" json:"id"`
	PollID int64  `db:"poll_id" json:"pollId"`
	Label  string `db:"label" json:"label"`
	Ord    int    `db:"ord" json:"ord"`
}

type PollVote struct {
	ID        int64     `db:"id" json:"id"`
	PollID    int64     `db:"poll_id" json:"pollId"`
	OptionID  int64     `db:"option_id" json:"optionId"`
	UserID    int64     `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// OptionCount is one aggregated tally row, ordered by option ord.
type OptionCount struct {
	ID    int64  `db:"id" json:"id"`
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

type CreatePollParams struct {
	ClassSessionID int64
	Question       string
	Type           PollType
	Anonymous      bool
	CreatedBy      int64
}
