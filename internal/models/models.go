package models

import "time"

// Option is a votable lunch venue from the catalog
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Website string `json:"website,omitempty" yaml:"website,omitempty"`
}

// Survey is the state of one week's lunch vote
type Survey struct {
	WeekID    string            `json:"week_id"`
	CreatedAt time.Time         `json:"created_at"`
	Options   map[string]string `json:"options"` // option id -> display name, snapshot at creation
	Votes     map[string]string `json:"votes"`   // voter id -> option id
	Winner    string            `json:"winner,omitempty"`
	Booker    string            `json:"booker,omitempty"`
	Booked    bool              `json:"booked"`
}

// Tallied reports whether a winner and booker have been chosen
func (s *Survey) Tallied() bool {
	return s.Winner != "" && s.Booker != ""
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Live feed event types
const (
	EventSurveyState   = "survey_state"
	EventSurveyStarted = "survey_started"
	EventVoteRecorded  = "vote_recorded"
	EventSurveyTallied = "survey_tallied"
	EventSurveyBooked  = "survey_booked"
)
