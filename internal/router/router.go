// Package router turns parsed chat actions and scheduled triggers into
// survey operations and sends the resulting text back out.
package router

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/services"
	"github.com/abrezinsky/lunchbot/pkg/chat"
)

// DefaultTimeout bounds a single dispatch when Config.Timeout is zero
const DefaultTimeout = 10 * time.Second

// Reply texts
const (
	NoActiveSurveyText = "There's no lunch survey running this week."
	NoVotesText        = "Nobody has voted yet, so there's no winner."
	InvalidOptionText  = "Sorry, that's not one of your options."
	ApologyText        = "Sorry, something went wrong. Please try again later."
	WelcomeText        = "Hello, I'm LunchBot! Ask me where we're going for lunch."
	UnknownText        = "I'm having trouble, can you try that again?"
	BookedText         = "Great, thanks for booking!"
	NotBookedText      = "No worries, I'll keep reminding you."
)

// ErrUnknownTrigger is returned by Trigger for names it does not know
var ErrUnknownTrigger = stderrors.New("unknown trigger")

// Request is an inbound action from the chat front end
type Request struct {
	Action        string            `json:"action"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	SourceChannel string            `json:"source_channel"`
	UserID        string            `json:"user_id,omitempty"`
	// Fulfillment is canned reply text supplied by the NLU, if any
	Fulfillment string `json:"fulfillment,omitempty"`
}

// Reply is what a dispatch produced. Err is the underlying failure, if any;
// Text already carries the user-facing version of it.
type Reply struct {
	RequestID   string `json:"request_id"`
	Action      string `json:"action"`
	Text        string `json:"text"`
	Destination string `json:"destination"`
	Delivered   bool   `json:"delivered"`
	Err         error  `json:"-"`
}

// TriggerResult is the outcome of a scheduled trigger
type TriggerResult struct {
	Name        string `json:"trigger"`
	Message     string `json:"message,omitempty"`
	Destination string `json:"destination,omitempty"`
	Delivered   bool   `json:"delivered"`
	Err         error  `json:"-"`
}

// Config holds router settings
type Config struct {
	// SurveyChannel receives prompts and announcements from triggers
	SurveyChannel string
	Timeout       time.Duration
	// MessageOptions are applied to every outbound message
	MessageOptions []chat.MessageOption
}

type outbound struct {
	text        string
	destination string
	// noop marks a reply that only acknowledges, such as nag after booking
	noop bool
}

type handlerFunc func(ctx context.Context, req Request) (outbound, error)

type trigger struct {
	action string
	// announce sends the successful reply to the survey channel
	announce bool
	// announceErrors posts business errors to the survey channel too
	announceErrors bool
}

var triggers = map[string]trigger{
	"start-survey": {action: "survey.start", announce: true, announceErrors: true},
	"stop-survey":  {action: "survey.stop", announce: true, announceErrors: true},
	"nag":          {action: "nag", announce: true},
	"booked":       {action: "havebooked"},
}

// Router dispatches actions to the survey service and sends the replies
type Router struct {
	log      logger.Logger
	survey   services.SurveyServicer
	notifier chat.Notifier
	cfg      Config
	handlers map[string]handlerFunc
}

// New creates a new Router
func New(log logger.Logger, survey services.SurveyServicer, notifier chat.Notifier, cfg Config) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	r := &Router{
		log:      log,
		survey:   survey,
		notifier: notifier,
		cfg:      cfg,
	}
	r.handlers = map[string]handlerFunc{
		"survey.start":  r.startSurvey,
		"startsurvey":   r.startSurvey,
		"vote":          r.vote,
		"survey.stop":   r.stopSurvey,
		"stopsurvey":    r.stopSurvey,
		"results":       r.stopSurvey,
		"nag":           r.nag,
		"havebooked":    r.markBooked,
		"booked":        r.markBooked,
		"markbooked":    r.markBooked,
		"notbooked":     r.notBooked,
		"input.welcome": r.welcome,
		"input.unknown": r.unknown,
	}
	return r
}

// Triggers lists the trigger names Trigger accepts
func Triggers() []string {
	return []string{"start-survey", "stop-survey", "nag", "booked"}
}

// Dispatch runs one inbound action and sends its reply to the source channel,
// or to the booker for nag. Nothing is sent when the request has no source
// channel; the caller delivers Reply.Text itself. Dispatch never fails:
// errors come back as apology text in the Reply.
func (r *Router) Dispatch(ctx context.Context, req Request) Reply {
	reply := Reply{RequestID: uuid.NewString(), Action: req.Action}
	log := r.log.With("request_id", reply.RequestID, "action", req.Action)

	handler, ok := r.handlers[normalize(req.Action)]
	if !ok {
		handler = r.fallback
	}

	out, err := r.execute(ctx, handler, req)
	reply.Err = err
	reply.Text = out.text
	reply.Destination = firstNonEmpty(out.destination, req.SourceChannel)
	if err != nil {
		reply.Text = r.errorText(log, err)
		reply.Destination = req.SourceChannel
	}

	reply.Delivered = r.send(ctx, log, reply.Destination, reply.Text)
	return reply
}

// Trigger runs a scheduled operation by name: start-survey, stop-survey, nag or booked.
func (r *Router) Trigger(ctx context.Context, name string) TriggerResult {
	result := TriggerResult{Name: name}
	t, ok := triggers[name]
	if !ok {
		result.Err = fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
		return result
	}
	log := r.log.With("request_id", uuid.NewString(), "trigger", name)

	req := Request{Action: t.action, SourceChannel: r.cfg.SurveyChannel}
	out, err := r.execute(ctx, r.handlers[t.action], req)
	result.Err = err

	switch {
	case err != nil:
		text := r.errorText(log, err)
		if !t.announceErrors {
			return result
		}
		result.Message, result.Destination = text, r.cfg.SurveyChannel
	case !t.announce || out.noop:
		log.Info("Trigger completed")
		return result
	default:
		result.Message = out.text
		result.Destination = firstNonEmpty(out.destination, r.cfg.SurveyChannel)
	}

	result.Delivered = r.send(ctx, log, result.Destination, result.Message)
	return result
}

// execute runs h under the dispatch timeout, turning panics into errors
func (r *Router) execute(ctx context.Context, h handlerFunc, req Request) (outbound, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type result struct {
		out outbound
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("panic in %s: %v", req.Action, p)}
			}
		}()
		out, err := h(ctx, req)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return outbound{}, ctx.Err()
	}
}

// send delivers text after the store work is finished. Failures are logged only.
func (r *Router) send(ctx context.Context, log logger.Logger, destination, text string) bool {
	if destination == "" || text == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
	defer cancel()

	if err := r.notifier.Send(ctx, destination, text, r.cfg.MessageOptions...); err != nil {
		log.Error("Failed to deliver reply", "destination", destination, "kind", errors.KindOf(err).String(), "error", err)
		return false
	}
	return true
}

// errorText maps an error to the reply shown to users
func (r *Router) errorText(log logger.Logger, err error) string {
	var optErr *services.InvalidOptionError
	switch {
	case stderrors.Is(err, services.ErrNoActiveSurvey), stderrors.Is(err, services.ErrSurveyNotFound):
		return NoActiveSurveyText
	case stderrors.Is(err, services.ErrNoVotes):
		return NoVotesText
	case stderrors.As(err, &optErr):
		return InvalidOptionText
	case stderrors.Is(err, context.DeadlineExceeded):
		log.Warn("Dispatch timed out", "timeout", r.cfg.Timeout)
	default:
		log.Error("Dispatch failed", "kind", errors.KindOf(err).String(), "error", err)
	}
	return ApologyText
}

// ==================== Action handlers ====================

func (r *Router) startSurvey(ctx context.Context, req Request) (outbound, error) {
	prompt, err := r.survey.CreateSurvey(ctx)
	if err != nil {
		return outbound{}, err
	}
	return outbound{text: prompt.Text}, nil
}

func (r *Router) vote(ctx context.Context, req Request) (outbound, error) {
	if req.UserID == "" {
		return outbound{}, errors.Validation("vote without a user")
	}
	text := firstNonEmpty(req.Parameters["pub"], req.Parameters["option"])

	receipt, err := r.survey.RecordVote(ctx, req.UserID, text)
	if err != nil {
		return outbound{}, err
	}
	return outbound{text: receipt.Text}, nil
}

func (r *Router) stopSurvey(ctx context.Context, req Request) (outbound, error) {
	result, err := r.survey.Tally(ctx)
	if err != nil {
		return outbound{}, err
	}
	return outbound{text: result.Text}, nil
}

func (r *Router) nag(ctx context.Context, req Request) (outbound, error) {
	result, err := r.survey.Nag(ctx)
	if err != nil {
		return outbound{}, err
	}
	if result.Booked {
		return outbound{text: result.Text, noop: true}, nil
	}
	return outbound{text: result.Text, destination: result.Booker}, nil
}

func (r *Router) markBooked(ctx context.Context, req Request) (outbound, error) {
	if err := r.survey.MarkBooked(ctx); err != nil {
		return outbound{}, err
	}
	return outbound{text: firstNonEmpty(req.Fulfillment, BookedText)}, nil
}

func (r *Router) notBooked(ctx context.Context, req Request) (outbound, error) {
	return outbound{text: firstNonEmpty(req.Fulfillment, NotBookedText)}, nil
}

func (r *Router) welcome(ctx context.Context, req Request) (outbound, error) {
	return outbound{text: firstNonEmpty(req.Fulfillment, WelcomeText)}, nil
}

func (r *Router) unknown(ctx context.Context, req Request) (outbound, error) {
	return outbound{text: firstNonEmpty(req.Fulfillment, UnknownText)}, nil
}

func (r *Router) fallback(ctx context.Context, req Request) (outbound, error) {
	return outbound{text: firstNonEmpty(req.Fulfillment, UnknownText)}, nil
}

func normalize(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
