package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/abrezinsky/lunchbot/internal/router"
)

const maxEventBytes = 1 << 20

// handleSlackEvents receives Slack Events API callbacks. Messages that are
// direct messages or mention the bot are interpreted and dispatched after the
// acknowledgement is written, so Slack never waits on the store.
func (h *Handlers) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		h.respondError(w, r, BadRequest("Could not read request body"))
		return
	}

	if h.opts.SigningSecret != "" {
		if err := h.verifySlack(r.Header, body); err != nil {
			h.Log.Warn("Rejected Slack request", "error", err)
			respondJSON(w, http.StatusUnauthorized, &APIError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "invalid signature"})
			return
		}
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.respondError(w, r, BadRequest("Invalid event: "+err.Error()))
		return
	}

	if event.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			h.respondError(w, r, BadRequest("Invalid challenge"))
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return
	}

	// Retries of events we already acknowledged
	if r.Header.Get("X-Slack-Retry-Num") != "" {
		w.Write([]byte("ok"))
		return
	}

	if event.Type == slackevents.CallbackEvent {
		if msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok && h.addressed(msg) {
			req := h.interpreter.Interpret(msg.Text, msg.User, msg.Channel)
			h.dispatchAsync(context.WithoutCancel(r.Context()), req)
		}
	}

	w.Write([]byte("ok"))
}

// addressed reports whether msg is a human message meant for the bot
func (h *Handlers) addressed(msg *slackevents.MessageEvent) bool {
	if msg.BotID != "" || msg.SubType != "" || msg.User == "" {
		return false
	}
	if msg.User == h.opts.BotUserID {
		return false
	}
	isDM := msg.ChannelType == "im" || strings.HasPrefix(msg.Channel, "D")
	return isDM || h.interpreter.Mentioned(msg.Text)
}

func (h *Handlers) verifySlack(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, h.opts.SigningSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (h *Handlers) dispatchAsync(ctx context.Context, req router.Request) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		reply := h.Dispatcher.Dispatch(ctx, req)
		h.Log.Debug("Chat message handled", "request_id", reply.RequestID, "action", reply.Action, "delivered", reply.Delivered)
	}()
}
