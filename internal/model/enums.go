package model

type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusEnded   SessionStatus = "ended"
)

type HandRaiseStatus string

const (
	HandRaiseStatusQueued    HandRaiseStatus = "queued"
	HandRaiseStatusSpeaking  HandRaiseStatus = "speaking"
	HandRaiseStatusDone      HandRaiseStatus = "done"
	HandRaiseStatusCancelled HandRaiseStatus = "cancelled"
)

type PollType string

const (
	PollTypeSingle   PollType = "single"
	PollTypeMultiple PollType = "multiple"
)

type PollStatus string

const (
	PollStatusOpen   PollStatus = "open"
	PollStatusClosed PollStatus = "closed"
)

type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleTeacher UserRole = "teacher"
	UserRoleAdmin   UserRole = "admin"
)

// IsTeacherRole reports whether the role may run a classroom.
func (r UserRole) IsTeacherRole() bool {
	return r == UserRoleTeacher || r == UserRoleAdmin
}
