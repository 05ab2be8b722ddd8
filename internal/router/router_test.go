package router_test

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/abrezinsky/lunchbot/internal/repository"
	"github.com/abrezinsky/lunchbot/internal/router"
	"github.com/abrezinsky/lunchbot/internal/services"
	"github.com/abrezinsky/lunchbot/internal/store"
	"github.com/abrezinsky/lunchbot/internal/store/mock"
	"github.com/abrezinsky/lunchbot/internal/testutil"
	"github.com/abrezinsky/lunchbot/pkg/chat"
)

const channel = "#pub-lunch"

type fixture struct {
	router   *router.Router
	survey   *services.SurveyService
	repo     *repository.Repository
	notifier *chat.MockNotifier
	store    *mock.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := mock.NewStore(store.NewMemory())
	repo := repository.New(st)
	testutil.SeedCatalog(t, repo, map[string]string{"p1": "Pizza Place", "p2": "Burger Bar"})
	survey := services.NewSurveyService(testutil.NewLogger(), repo, testutil.NewClock(), rand.New(rand.NewPCG(1, 2)))
	notifier := chat.NewMockNotifier()

	r := router.New(testutil.NewLogger(), survey, notifier, router.Config{
		SurveyChannel:  channel,
		Timeout:        200 * time.Millisecond,
		MessageOptions: []chat.MessageOption{chat.WithIconEmoji(":hamburger:"), chat.WithUsername("LunchBot")},
	})
	return &fixture{router: r, survey: survey, repo: repo, notifier: notifier, store: st}
}

func vote(user, pub string) router.Request {
	return router.Request{Action: "vote", Parameters: map[string]string{"pub": pub}, SourceChannel: "D" + user, UserID: user}
}

func TestDispatch_EndToEnd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	reply := f.router.Dispatch(ctx, router.Request{Action: "survey.start", SourceChannel: channel})
	if !strings.Contains(reply.Text, "Pizza Place and Burger Bar") {
		t.Fatalf("unexpected prompt %q", reply.Text)
	}
	if !reply.Delivered || reply.Destination != channel {
		t.Errorf("expected prompt delivered to %s, got %+v", channel, reply)
	}

	for _, v := range []router.Request{vote("U1", "Pizza Place"), vote("U2", "pizza place"), vote("U3", "Burger Bar")} {
		reply := f.router.Dispatch(ctx, v)
		if reply.Err != nil || !strings.HasPrefix(reply.Text, "That's one more for ") {
			t.Fatalf("vote %v failed: %+v", v.Parameters, reply)
		}
	}

	reply = f.router.Dispatch(ctx, router.Request{Action: "results", SourceChannel: channel})
	if !strings.HasPrefix(reply.Text, "The votes are in! This week we're headed to Pizza Place.") {
		t.Fatalf("unexpected announcement %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "<@U1>") && !strings.Contains(reply.Text, "<@U2>") {
		t.Errorf("booker should be a Pizza Place voter: %q", reply.Text)
	}

	reply = f.router.Dispatch(ctx, router.Request{Action: "havebooked", SourceChannel: "DU1"})
	if reply.Text != router.BookedText {
		t.Errorf("unexpected booked reply %q", reply.Text)
	}

	reply = f.router.Dispatch(ctx, router.Request{Action: "nag", SourceChannel: channel})
	if reply.Text != "ok" || reply.Destination != channel {
		t.Errorf("expected no-op nag reply, got %+v", reply)
	}

	if got := len(f.notifier.Messages()); got != 7 {
		t.Errorf("expected 7 messages sent, got %d", got)
	}
	last, _ := f.notifier.Last()
	if last.IconEmoji != ":hamburger:" || last.Username != "LunchBot" {
		t.Errorf("expected presentation hints on every message, got %+v", last)
	}
}

func TestDispatch_ActionAliases(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, action := range []string{"startSurvey", "SURVEY.START", " survey.start "} {
		reply := f.router.Dispatch(ctx, router.Request{Action: action, SourceChannel: channel})
		if reply.Err != nil || !strings.HasPrefix(reply.Text, "It's that time of the week!") {
			t.Errorf("%q: unexpected reply %+v", action, reply)
		}
	}

	f.router.Dispatch(ctx, router.Request{Action: "vote", Parameters: map[string]string{"option": "Burger Bar"}, UserID: "U1", SourceChannel: "DU1"})
	reply := f.router.Dispatch(ctx, router.Request{Action: "stopSurvey", SourceChannel: channel})
	if !strings.Contains(reply.Text, "Burger Bar") {
		t.Errorf("expected option parameter alias to count, got %q", reply.Text)
	}

	if reply := f.router.Dispatch(ctx, router.Request{Action: "markBooked", SourceChannel: channel}); reply.Text != router.BookedText {
		t.Errorf("markBooked: unexpected reply %q", reply.Text)
	}
}

func TestDispatch_ErrorReplies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  router.Request
		want string
	}{
		{"vote without survey", vote("U1", "Pizza Place"), router.NoActiveSurveyText},
		{"tally without survey", router.Request{Action: "survey.stop", SourceChannel: channel}, router.NoActiveSurveyText},
		{"nag without survey", router.Request{Action: "nag", SourceChannel: channel}, router.NoActiveSurveyText},
		{"booked without survey", router.Request{Action: "havebooked", SourceChannel: channel}, router.NoActiveSurveyText},
		{"vote without user", router.Request{Action: "vote", Parameters: map[string]string{"pub": "Pizza Place"}, SourceChannel: channel}, router.ApologyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := f.router.Dispatch(ctx, tt.req)
			if reply.Text != tt.want {
				t.Errorf("reply = %q, want %q", reply.Text, tt.want)
			}
			if reply.Err == nil {
				t.Error("expected Err to be set")
			}
			if reply.Destination != tt.req.SourceChannel {
				t.Errorf("error replies go back to the source, got %s", reply.Destination)
			}
		})
	}
}

func TestDispatch_InvalidOptionAndNoVotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.router.Dispatch(ctx, router.Request{Action: "survey.start", SourceChannel: channel})

	if reply := f.router.Dispatch(ctx, vote("U1", "Taco Truck")); reply.Text != router.InvalidOptionText {
		t.Errorf("invalid option: got %q", reply.Text)
	}
	if reply := f.router.Dispatch(ctx, vote("U1", "")); reply.Text != router.InvalidOptionText {
		t.Errorf("missing option: got %q", reply.Text)
	}
	if reply := f.router.Dispatch(ctx, router.Request{Action: "survey.stop", SourceChannel: channel}); reply.Text != router.NoVotesText {
		t.Errorf("no votes: got %q", reply.Text)
	}
}

func TestDispatch_Nag(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.router.Dispatch(ctx, router.Request{Action: "survey.start", SourceChannel: channel})
	f.router.Dispatch(ctx, vote("U7", "Burger Bar"))
	f.router.Dispatch(ctx, router.Request{Action: "survey.stop", SourceChannel: channel})

	reply := f.router.Dispatch(ctx, router.Request{Action: "nag", SourceChannel: channel})
	if reply.Text != "Get to booking, <@U7>" || reply.Destination != "U7" {
		t.Errorf("expected reminder sent to booker, got %+v", reply)
	}
}

func TestDispatch_CannedReplies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		req  router.Request
		want string
	}{
		{router.Request{Action: "input.welcome", SourceChannel: "D1"}, router.WelcomeText},
		{router.Request{Action: "input.unknown", SourceChannel: "D1"}, router.UnknownText},
		{router.Request{Action: "notbooked", SourceChannel: "D1"}, router.NotBookedText},
		{router.Request{Action: "notbooked", SourceChannel: "D1", Fulfillment: "OK, I'll check back later."}, "OK, I'll check back later."},
		{router.Request{Action: "smalltalk.greetings", SourceChannel: "D1", Fulfillment: "Howdy!"}, "Howdy!"},
		{router.Request{Action: "smalltalk.greetings", SourceChannel: "D1"}, router.UnknownText},
	}

	for _, tt := range tests {
		reply := f.router.Dispatch(ctx, tt.req)
		if reply.Text != tt.want || reply.Err != nil {
			t.Errorf("%s: got %+v, want %q", tt.req.Action, reply, tt.want)
		}
	}
}

func TestDispatch_DeliveryFailureIsNotAnError(t *testing.T) {
	f := setup(t)
	f.notifier.SetSendError(stderrors.New("slack down"))

	reply := f.router.Dispatch(context.Background(), router.Request{Action: "survey.start", SourceChannel: channel})
	if reply.Err != nil {
		t.Errorf("delivery failures must not fail the dispatch, got %v", reply.Err)
	}
	if reply.Delivered {
		t.Error("expected Delivered=false")
	}

	// The survey was still written
	if _, err := f.repo.GetSurvey(context.Background(), "42"); err != nil {
		t.Errorf("expected survey to exist despite delivery failure: %v", err)
	}
}

func TestDispatch_NoMessageBeforeWrite(t *testing.T) {
	f := setup(t)
	f.store.SetError = stderrors.New("disk full")

	reply := f.router.Dispatch(context.Background(), router.Request{Action: "survey.start", SourceChannel: channel})
	if reply.Text != router.ApologyText {
		t.Fatalf("expected apology, got %q", reply.Text)
	}
	for _, msg := range f.notifier.Messages() {
		if strings.HasPrefix(msg.Text, "It's that time") {
			t.Error("prompt must not be sent when the write failed")
		}
	}
}

func TestDispatch_Timeout(t *testing.T) {
	f := setup(t)
	f.store.Block = true

	start := time.Now()
	reply := f.router.Dispatch(context.Background(), router.Request{Action: "survey.start", SourceChannel: channel})

	if reply.Text != router.ApologyText {
		t.Errorf("expected apology on timeout, got %q", reply.Text)
	}
	if !stderrors.Is(reply.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", reply.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dispatch took %v, expected it to be bounded", elapsed)
	}
	if !reply.Delivered {
		t.Error("apology should still be delivered")
	}
}

// panickingSurvey is a SurveyServicer whose every method panics
type panickingSurvey struct {
	services.SurveyServicer
}

func (panickingSurvey) CreateSurvey(ctx context.Context) (*services.SurveyPrompt, error) {
	panic("boom")
}

func TestDispatch_RecoversPanics(t *testing.T) {
	notifier := chat.NewMockNotifier()
	r := router.New(testutil.NewLogger(), panickingSurvey{}, notifier, router.Config{SurveyChannel: channel})

	reply := r.Dispatch(context.Background(), router.Request{Action: "survey.start", SourceChannel: channel})
	if reply.Text != router.ApologyText || reply.Err == nil {
		t.Errorf("expected apology after panic, got %+v", reply)
	}
	if reply.RequestID == "" {
		t.Error("expected a request id")
	}
}

func TestTrigger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res := f.router.Trigger(ctx, "start-survey")
	if res.Err != nil || !res.Delivered || res.Destination != channel {
		t.Fatalf("start-survey: %+v", res)
	}

	// No votes yet: the channel hears about it
	res = f.router.Trigger(ctx, "stop-survey")
	if !stderrors.Is(res.Err, services.ErrNoVotes) || res.Message != router.NoVotesText || res.Destination != channel {
		t.Errorf("stop-survey without votes: %+v", res)
	}

	// Nag before tally stays quiet
	before := len(f.notifier.Messages())
	res = f.router.Trigger(ctx, "nag")
	if !stderrors.Is(res.Err, services.ErrNoActiveSurvey) || res.Delivered {
		t.Errorf("nag before tally: %+v", res)
	}
	if len(f.notifier.Messages()) != before {
		t.Error("nag errors must not be posted")
	}

	f.router.Dispatch(ctx, vote("U1", "Pizza Place"))
	res = f.router.Trigger(ctx, "stop-survey")
	if res.Err != nil || !strings.Contains(res.Message, "Pizza Place") {
		t.Fatalf("stop-survey: %+v", res)
	}

	res = f.router.Trigger(ctx, "nag")
	if res.Destination != "U1" || res.Message != "Get to booking, <@U1>" || !res.Delivered {
		t.Errorf("nag: %+v", res)
	}

	before = len(f.notifier.Messages())
	res = f.router.Trigger(ctx, "booked")
	if res.Err != nil || res.Delivered {
		t.Errorf("booked: %+v", res)
	}
	res = f.router.Trigger(ctx, "nag")
	if res.Err != nil || res.Delivered {
		t.Errorf("nag after booking should be silent: %+v", res)
	}
	if len(f.notifier.Messages()) != before {
		t.Error("expected no messages after booking")
	}

	survey, _ := f.repo.GetSurvey(ctx, "42")
	if !survey.Booked {
		t.Error("expected booked trigger to persist")
	}
}

func TestTrigger_Unknown(t *testing.T) {
	f := setup(t)

	res := f.router.Trigger(context.Background(), "reboot")
	if !stderrors.Is(res.Err, router.ErrUnknownTrigger) {
		t.Errorf("expected ErrUnknownTrigger, got %v", res.Err)
	}
}

func TestTriggers(t *testing.T) {
	if got := strings.Join(router.Triggers(), ","); got != "start-survey,stop-survey,nag,booked" {
		t.Errorf("unexpected triggers %s", got)
	}
}

func TestDispatch_RestartWipesVotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.router.Trigger(ctx, "start-survey")
	f.router.Dispatch(ctx, vote("U1", "Pizza Place"))
	f.router.Trigger(ctx, "start-survey")

	survey, _ := f.repo.GetSurvey(ctx, "42")
	if len(survey.Votes) != 0 {
		t.Errorf("expected fresh survey, got %v", survey.Votes)
	}
}

func TestDispatch_NoSourceChannelSendsNothing(t *testing.T) {
	f := setup(t)

	reply := f.router.Dispatch(context.Background(), router.Request{Action: "survey.start"})
	if !strings.HasPrefix(reply.Text, "It's that time") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if reply.Delivered || len(f.notifier.Messages()) != 0 {
		t.Error("expected the reply to be left to the caller")
	}
}
