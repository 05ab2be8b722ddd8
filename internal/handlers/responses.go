package handlers

import (
	"sort"
	"time"

	"github.com/abrezinsky/lunchbot/internal/models"
)

// OptionTally is one option of a survey with its vote count
type OptionTally struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// SurveyResponse is the public view of a survey. Individual votes are not exposed.
type SurveyResponse struct {
	WeekID     string        `json:"week_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Options    []OptionTally `json:"options"`
	TotalVotes int           `json:"total_votes"`
	Winner     string        `json:"winner,omitempty"`
	WinnerName string        `json:"winner_name,omitempty"`
	Booker     string        `json:"booker,omitempty"`
	Booked     bool          `json:"booked"`
}

// TriggerResponse is the response for POST /triggers/{name}
type TriggerResponse struct {
	Trigger     string `json:"trigger"`
	Message     string `json:"message,omitempty"`
	Destination string `json:"destination,omitempty"`
	Delivered   bool   `json:"delivered"`
	Error       string `json:"error,omitempty"`
}

// FulfillmentResponse is the Dialogflow (v1) webhook reply
type FulfillmentResponse struct {
	Speech      string `json:"speech"`
	DisplayText string `json:"displayText"`
	Source      string `json:"source"`
}

// newSurveyResponse counts votes per option, ordered by option id
func newSurveyResponse(s *models.Survey) SurveyResponse {
	counts := make(map[string]int, len(s.Options))
	for _, option := range s.Votes {
		counts[option]++
	}

	ids := make([]string, 0, len(s.Options))
	for id := range s.Options {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resp := SurveyResponse{
		WeekID:     s.WeekID,
		CreatedAt:  s.CreatedAt,
		Options:    make([]OptionTally, 0, len(ids)),
		Winner:     s.Winner,
		WinnerName: s.Options[s.Winner],
		Booker:     s.Booker,
		Booked:     s.Booked,
	}
	for _, id := range ids {
		resp.Options = append(resp.Options, OptionTally{ID: id, Name: s.Options[id], Votes: counts[id]})
		resp.TotalVotes += counts[id]
	}
	return resp
}
