package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/models"
	"github.com/abrezinsky/lunchbot/internal/repository"
	"github.com/abrezinsky/lunchbot/internal/weekclock"
)

const (
	promptText       = "It's that time of the week! Where does everyone want to go for pub lunch on Friday?"
	voteText         = "That's one more for %s!"
	announcementText = "The votes are in! This week we're headed to %s. <@%s> is in charge of booking."
	nagText          = "Get to booking, <@%s>"
	bookedText       = "ok"
)

// errUnchanged aborts an update without writing
var errUnchanged = stderrors.New("unchanged")

// SurveyServiceRepository defines the repository methods needed by SurveyService
type SurveyServiceRepository interface {
	repository.SurveyRepository
	ListOptions(ctx context.Context) ([]models.Option, error)
}

// SurveyService runs the weekly survey: create, vote, tally, nag and booking
type SurveyService struct {
	log         logger.Logger
	repo        SurveyServiceRepository
	clock       weekclock.Clock
	broadcaster Broadcaster

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSurveyService creates a new SurveyService. rng picks the booker.
func NewSurveyService(log logger.Logger, repo SurveyServiceRepository, clock weekclock.Clock, rng *rand.Rand) *SurveyService {
	return &SurveyService{
		log:   log,
		repo:  repo,
		clock: clock,
		rng:   rng,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *SurveyService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SurveyPrompt is the result of starting a survey
type SurveyPrompt struct {
	WeekID  string   `json:"week_id"`
	Options []string `json:"options"`
	Text    string   `json:"text"`
}

// VoteReceipt confirms a recorded vote
type VoteReceipt struct {
	WeekID     string `json:"week_id"`
	VoterID    string `json:"voter_id"`
	OptionID   string `json:"option_id"`
	OptionName string `json:"option_name"`
	Text       string `json:"text"`
}

// TallyResult is the outcome of counting the week's votes
type TallyResult struct {
	WeekID     string         `json:"week_id"`
	WinnerID   string         `json:"winner_id"`
	WinnerName string         `json:"winner_name"`
	Booker     string         `json:"booker"`
	Voters     []string       `json:"voters"`
	Counts     map[string]int `json:"counts"`
	Text       string         `json:"text"`
	// Existing is set when the week had already been tallied
	Existing bool `json:"existing"`
}

// NagResult is either a reminder for the booker or, once booked, a no-op
type NagResult struct {
	WeekID string `json:"week_id"`
	Booker string `json:"booker"`
	Booked bool   `json:"booked"`
	Text   string `json:"text"`
}

// CreateSurvey snapshots the catalog into this week's survey, replacing any
// survey already stored for the week.
func (s *SurveyService) CreateSurvey(ctx context.Context) (*SurveyPrompt, error) {
	week := weekclock.Current(s.clock)

	catalog, err := s.repo.ListOptions(ctx)
	if err != nil {
		return nil, s.fail("create", week, err)
	}

	survey := &models.Survey{
		WeekID:    week,
		CreatedAt: s.clock.Now(),
		Options:   make(map[string]string, len(catalog)),
		Votes:     map[string]string{},
	}
	names := make([]string, 0, len(catalog))
	for _, opt := range catalog {
		survey.Options[opt.ID] = opt.Name
		names = append(names, opt.Name)
	}

	if err := s.repo.SaveSurvey(ctx, survey); err != nil {
		return nil, s.fail("create", week, err)
	}
	s.log.Info("Survey started", "week", week, "options", len(names))
	s.broadcast(models.EventSurveyStarted, survey)

	return &SurveyPrompt{WeekID: week, Options: names, Text: prompt(names)}, nil
}

// RecordVote stores voterID's choice for this week, replacing any earlier vote.
// optionText is matched case-insensitively against the option names.
func (s *SurveyService) RecordVote(ctx context.Context, voterID, optionText string) (*VoteReceipt, error) {
	week := weekclock.Current(s.clock)
	text := strings.TrimSpace(optionText)
	receipt := &VoteReceipt{WeekID: week, VoterID: voterID}

	err := s.repo.UpdateSurvey(ctx, week, func(survey *models.Survey) error {
		id, name, ok := matchOption(survey.Options, text)
		if !ok {
			return &InvalidOptionError{Text: optionText}
		}
		survey.Votes[voterID] = id
		receipt.OptionID = id
		receipt.OptionName = name
		return nil
	})
	if err != nil {
		return nil, s.fail("vote", week, err)
	}

	receipt.Text = fmt.Sprintf(voteText, receipt.OptionName)
	s.log.Debug("Vote recorded", "week", week, "voter", voterID, "option", receipt.OptionID)
	s.broadcast(models.EventVoteRecorded, map[string]interface{}{
		"week_id":   week,
		"voter_id":  voterID,
		"option_id": receipt.OptionID,
	})
	return receipt, nil
}

// Tally picks this week's winner and booker. Voters are scanned in ascending
// id order and a tie goes to the option seen first. A week that already has
// a winner is returned as stored.
func (s *SurveyService) Tally(ctx context.Context) (*TallyResult, error) {
	week := weekclock.Current(s.clock)
	var result *TallyResult

	err := s.repo.UpdateSurvey(ctx, week, func(survey *models.Survey) error {
		if survey.Tallied() {
			result = storedResult(survey)
			return errUnchanged
		}

		res, err := s.count(survey)
		if err != nil {
			return err
		}
		survey.Winner = res.WinnerID
		survey.Booker = res.Booker
		result = res
		return nil
	})
	if err != nil && !stderrors.Is(err, errUnchanged) {
		return nil, s.fail("tally", week, err)
	}

	result.WeekID = week
	result.Text = fmt.Sprintf(announcementText, result.WinnerName, result.Booker)
	if !result.Existing {
		s.log.Info("Survey tallied", "week", week, "winner", result.WinnerID, "booker", result.Booker)
		s.broadcast(models.EventSurveyTallied, result)
	}
	return result, nil
}

// count groups votes by option and draws the booker
func (s *SurveyService) count(survey *models.Survey) (*TallyResult, error) {
	voters := make([]string, 0, len(survey.Votes))
	for voter := range survey.Votes {
		voters = append(voters, voter)
	}
	sort.Strings(voters)

	var order []string
	groups := make(map[string][]string)
	for _, voter := range voters {
		option := survey.Votes[voter]
		if _, ok := survey.Options[option]; !ok {
			continue
		}
		if _, seen := groups[option]; !seen {
			order = append(order, option)
		}
		groups[option] = append(groups[option], voter)
	}
	if len(order) == 0 {
		return nil, ErrNoVotes
	}

	winner, best := "", 0
	counts := make(map[string]int, len(order))
	for _, option := range order {
		n := len(groups[option])
		counts[option] = n
		if n > best {
			winner, best = option, n
		}
	}

	winners := groups[winner]
	return &TallyResult{
		WinnerID:   winner,
		WinnerName: survey.Options[winner],
		Booker:     winners[s.intN(len(winners))],
		Voters:     winners,
		Counts:     counts,
	}, nil
}

func (s *SurveyService) intN(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

// Nag reminds the booker until the week is marked booked.
func (s *SurveyService) Nag(ctx context.Context) (*NagResult, error) {
	week := weekclock.Current(s.clock)

	survey, err := s.repo.GetSurvey(ctx, week)
	if err != nil {
		return nil, s.fail("nag", week, err)
	}
	if survey.Booker == "" {
		return nil, ErrNoActiveSurvey
	}

	if survey.Booked {
		return &NagResult{WeekID: week, Booker: survey.Booker, Booked: true, Text: bookedText}, nil
	}
	return &NagResult{
		WeekID: week,
		Booker: survey.Booker,
		Text:   fmt.Sprintf(nagText, survey.Booker),
	}, nil
}

// MarkBooked records that this week's table has been booked. Repeat calls are no-ops.
func (s *SurveyService) MarkBooked(ctx context.Context) error {
	week := weekclock.Current(s.clock)

	err := s.repo.UpdateSurvey(ctx, week, func(survey *models.Survey) error {
		survey.Booked = true
		return nil
	})
	if err != nil {
		return s.fail("booked", week, err)
	}

	s.log.Info("Survey booked", "week", week)
	s.broadcast(models.EventSurveyBooked, map[string]interface{}{"week_id": week})
	return nil
}

// CurrentSurvey returns this week's survey
func (s *SurveyService) CurrentSurvey(ctx context.Context) (*models.Survey, error) {
	week := weekclock.Current(s.clock)
	survey, err := s.repo.GetSurvey(ctx, week)
	if err != nil {
		return nil, s.fail("get", week, err)
	}
	return survey, nil
}

// Survey returns the survey stored for weekID
func (s *SurveyService) Survey(ctx context.Context, weekID string) (*models.Survey, error) {
	survey, err := s.repo.GetSurvey(ctx, weekID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrSurveyNotFound
	}
	if err != nil {
		return nil, s.fail("get", weekID, err)
	}
	return survey, nil
}

// fail maps a missing survey to ErrNoActiveSurvey and logs infrastructure errors
func (s *SurveyService) fail(op, week string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return ErrNoActiveSurvey
	}

	var svcErr *ServiceError
	var optErr *InvalidOptionError
	if stderrors.As(err, &svcErr) || stderrors.As(err, &optErr) {
		return err
	}

	s.log.Error("Survey operation failed", "op", op, "week", week, "kind", errors.KindOf(err).String(), "error", err)
	return err
}

func (s *SurveyService) broadcast(msgType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(msgType, payload)
	}
}

// matchOption finds the option whose name equals text ignoring case.
// Options are checked in id order so duplicate names resolve the same way every time.
func matchOption(options map[string]string, text string) (id, name string, ok bool) {
	if text == "" {
		return "", "", false
	}
	ids := make([]string, 0, len(options))
	for id := range options {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if strings.EqualFold(options[id], text) {
			return id, options[id], true
		}
	}
	return "", "", false
}

func storedResult(survey *models.Survey) *TallyResult {
	return &TallyResult{
		WinnerID:   survey.Winner,
		WinnerName: survey.Options[survey.Winner],
		Booker:     survey.Booker,
		Existing:   true,
	}
}

// prompt builds the survey question, listing names as "A, B and C"
func prompt(names []string) string {
	switch len(names) {
	case 0:
		return promptText
	case 1:
		return promptText + " Your options are " + names[0] + "."
	}
	return promptText + " Your options are " + strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1] + "."
}
