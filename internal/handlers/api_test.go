package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/abrezinsky/lunchbot/internal/handlers"
	"github.com/abrezinsky/lunchbot/internal/models"
)

func TestGetCurrentSurvey_NoSurvey(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	rec := ts.do(t, http.MethodGet, "/api/surveys/current", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var apiErr handlers.APIError
	decode(t, rec, &apiErr)
	if apiErr.Code != handlers.ErrCodeNoSurvey {
		t.Errorf("expected code %s, got %s", handlers.ErrCodeNoSurvey, apiErr.Code)
	}
}

func TestGetCurrentSurvey(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})
	ts.startSurvey(t)
	ctx := context.Background()
	ts.survey.RecordVote(ctx, "U1", "Pizza Place")
	ts.survey.RecordVote(ctx, "U2", "Pizza Place")
	ts.survey.RecordVote(ctx, "U3", "Burger Bar")
	ts.survey.Tally(ctx)

	rec := ts.do(t, http.MethodGet, "/api/surveys/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.SurveyResponse
	decode(t, rec, &resp)
	if resp.WeekID != "42" || resp.TotalVotes != 3 {
		t.Errorf("unexpected survey %+v", resp)
	}
	if len(resp.Options) != 2 || resp.Options[0].ID != "p1" || resp.Options[0].Votes != 2 {
		t.Errorf("unexpected options %+v", resp.Options)
	}
	if resp.Winner != "p1" || resp.WinnerName != "Pizza Place" || resp.Booker == "" {
		t.Errorf("expected tally in response, got %+v", resp)
	}
	if strings.Contains(rec.Body.String(), `"votes":{`) {
		t.Error("individual votes must not be exposed")
	}
}

func TestGetSurveyByWeek(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})
	ts.startSurvey(t)

	if rec := ts.do(t, http.MethodGet, "/api/surveys/42", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for week 42, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/surveys/7", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for week 7, got %d", rec.Code)
	}
}

func TestSurveyQR(t *testing.T) {
	ts := newTestServer(t, handlers.Options{BaseURL: "https://lunch.example.com/"})

	rec := ts.do(t, http.MethodGet, "/api/surveys/current/qr", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected a PNG body")
	}
}

func TestOptionsCRUD(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	rec := ts.do(t, http.MethodPut, "/api/options/cargobar", handlers.OptionRequest{Name: "Cargo Bar", Website: "https://cargobar.com.au"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/options", nil)
	var options []models.Option
	decode(t, rec, &options)
	if len(options) != 3 || options[0].ID != "cargobar" || options[0].Website != "https://cargobar.com.au" {
		t.Errorf("unexpected options %+v", options)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/options/cargobar", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE expected 204, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/options/cargobar", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE expected 404, got %d", rec.Code)
	}
}

func TestPutOption_Invalid(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", ""},
		{"bad json", "{"},
		{"missing name", handlers.OptionRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, "/api/options/x", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestTriggers(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	rec := ts.do(t, http.MethodPost, "/triggers/start-survey", nil)
	var resp handlers.TriggerResponse
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || !resp.Delivered || resp.Destination != "#pub-lunch" {
		t.Errorf("start-survey: %d %+v", rec.Code, resp)
	}

	rec = ts.do(t, http.MethodPost, "/triggers/stop-survey", nil)
	resp = handlers.TriggerResponse{}
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Error == "" {
		t.Errorf("stop-survey without votes should still be acknowledged with an error, got %d %+v", rec.Code, resp)
	}

	if rec := ts.do(t, http.MethodPost, "/triggers/reboot", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown trigger expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/triggers/nag", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET trigger expected 405, got %d", rec.Code)
	}
}

func TestIndexPage(t *testing.T) {
	ts := newPageServer(t)

	rec := ts.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "no lunch survey") {
		t.Errorf("expected empty state, got %d", rec.Code)
	}

	ts.startSurvey(t)
	rec = ts.do(t, http.MethodGet, "/", nil)
	if !strings.Contains(rec.Body.String(), "Pizza Place") || !strings.Contains(rec.Body.String(), "Week 42") {
		t.Errorf("expected survey to be rendered, got %s", rec.Body.String())
	}

	if rec := ts.do(t, http.MethodGet, "/static/js/survey.js", nil); rec.Code != http.StatusOK {
		t.Errorf("expected static asset, got %d", rec.Code)
	}
}

func TestPagesNotMountedForTesting(t *testing.T) {
	ts := newTestServer(t, handlers.Options{})

	if rec := ts.do(t, http.MethodGet, "/", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without templates, got %d", rec.Code)
	}
}
