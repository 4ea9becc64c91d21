package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionSettings is an extensible key-value bag stored as JSON on the
// session row. The one key currently consumed by the engine is globalMute.
type SessionSettings map[string]any

const settingsKeyGlobalMute = "globalMute"

func (s SessionSettings) GlobalMute() bool {
	v, ok := s[settingsKeyGlobalMute].(bool)
	return ok && v
}

func (s SessionSettings) SetGlobalMute(mute bool) SessionSettings {
	out := make(SessionSettings, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[settingsKeyGlobalMute] = mute
	return out
}

// Scan implements sql.Scanner. Some legacy rows were double-serialized as a
// JSON string; decode up to twice. Anything unparseable decays to an empty bag.
func (s *SessionSettings) Scan(src any) error {
	if src == nil {
		*s = SessionSettings{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported settings type %T", src)
	}

	current := json.RawMessage(raw)
	for i := 0; i < 2; i++ {
		var inner string
		if err := json.Unmarshal(current, &inner); err != nil {
			break
		}
		current = json.RawMessage(inner)
	}

	var bag map[string]any
	if err := json.Unmarshal(current, &bag); err != nil || bag == nil {
		*s = SessionSettings{}
		return nil
	}

	*s = bag
	return nil
}

// Value implements driver.Valuer.
func (s SessionSettings) Value() (driver.Value, error) {
	if s == nil {
		s = SessionSettings{}
	}
	return json.Marshal(s)
}

type ClassSession struct {
	ID        int64           `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	Status    SessionStatus   `db:"status" json:"status"`
	CreatedBy int64           `db:"created_by" json:"createdBy"`
	Settings  SessionSettings `db:"settings" json:"settings"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	EndedAt   *time.Time      `db:"ended_at" json:"endedAt,omitempty"`
}

type CreateSessionParams struct {
	Title     string
	CreatedBy int64
}
