package handlers_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/abrezinsky/lunchbot/internal/handlers"
	"github.com/abrezinsky/lunchbot/internal/router"
)

func messageEvent(channel, channelType, user, text string) string {
	return fmt.Sprintf(`{
		"token": "XXYYZZ",
		"team_id": "T061EG9RZ",
		"api_app_id": "A0FFV41KK",
		"type": "event_callback",
		"event_id": "Ev9UQ52YNA",
		"event_time": 1355517523,
		"event": {
			"type": "message",
			"channel": %q,
			"channel_type": %q,
			"user": %q,
			"text": %q,
			"ts": "1355517523.000005"
		}
	}`, channel, channelType, user, text)
}

func (ts *testServer) postEvent(t *testing.T, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.http.ServeHTTP(rec, req)
	ts.handlers.Wait()
	return rec
}

func TestSlackEvents_URLVerification(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	body := `{"token":"XXYYZZ","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`
	rec := ts.postEvent(t, body, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Errorf("expected challenge echoed, got %q", rec.Body.String())
	}
}

func TestSlackEvents_DirectMessage(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	rec := ts.postEvent(t, messageEvent("D024BE91L", "im", "U2147483697", "start"), nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected ok ack, got %d %q", rec.Code, rec.Body.String())
	}

	msg, ok := ts.notifier.Last()
	if !ok {
		t.Fatal("expected a reply to be sent")
	}
	if msg.Destination != "D024BE91L" || !strings.Contains(msg.Text, "Pizza Place") {
		t.Errorf("unexpected reply %+v", msg)
	}

	ts.postEvent(t, messageEvent("D024BE91L", "im", "U2147483697", "vote burger bar!"), nil)
	msg, _ = ts.notifier.Last()
	if msg.Text != "That's one more for Burger Bar!" {
		t.Errorf("unexpected vote reply %q", msg.Text)
	}
}

func TestSlackEvents_Mention(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	ts.postEvent(t, messageEvent("C0LAN2Q65", "channel", "U2147483697", "<@"+botUserID+"> hello"), nil)

	msg, ok := ts.notifier.Last()
	if !ok || msg.Destination != "C0LAN2Q65" || msg.Text != router.WelcomeText {
		t.Errorf("expected welcome in channel, got %+v", msg)
	}
}

func TestSlackEvents_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header http.Header
	}{
		{
			name: "channel chatter without mention",
			body: messageEvent("C0LAN2Q65", "channel", "U2147483697", "hello"),
		},
		{
			name: "message from the bot itself",
			body: messageEvent("D024BE91L", "im", botUserID, "hello"),
		},
		{
			name: "bot message",
			body: `{"type":"event_callback","event":{"type":"message","subtype":"bot_message","bot_id":"B1","channel":"D024BE91L","channel_type":"im","text":"hello","ts":"1.2"}}`,
		},
		{
			name:   "retry",
			body:   messageEvent("D024BE91L", "im", "U2147483697", "hello"),
			header: http.Header{"X-Slack-Retry-Num": []string{"1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, handlers.Options{})

			rec := ts.postEvent(t, tt.body, tt.header)
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
			if msgs := ts.notifier.Messages(); len(msgs) != 0 {
				t.Errorf("expected no replies, got %+v", msgs)
			}
		})
	}
}

func TestSlackEvents_Malformed(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	rec := ts.postEvent(t, "{not json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func sign(secret, body string, ts time.Time) http.Header {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + stamp + ":" + body))
	return http.Header{
		"X-Slack-Request-Timestamp": []string{stamp},
		"X-Slack-Signature":         []string{"v0=" + hex.EncodeToString(mac.Sum(nil))},
	}
}

func TestSlackEvents_Signature(t *testing.T) {
	const secret = "8f742231b10e8888abcd99yyyzzz85a5"
	body := messageEvent("D024BE91L", "im", "U2147483697", "hi")

	t.Run("valid", func(t *testing.T) {
		ts := newTestServer(t, handlers.Options{SigningSecret: secret})

		rec := ts.postEvent(t, body, sign(secret, body, time.Now()))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(ts.notifier.Messages()) != 1 {
			t.Error("expected signed message to be handled")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		ts := newTestServer(t, handlers.Options{SigningSecret: secret})

		rec := ts.postEvent(t, body, sign("other", body, time.Now()))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if len(ts.notifier.Messages()) != 0 {
			t.Error("unsigned message must not be handled")
		}
	})

	t.Run("missing headers", func(t *testing.T) {
		ts := newTestServer(t, handlers.Options{SigningSecret: secret})

		if rec := ts.postEvent(t, body, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}
