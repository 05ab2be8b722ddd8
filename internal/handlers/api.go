package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/lunchbot/internal/models"
	"github.com/abrezinsky/lunchbot/internal/router"
	"github.com/abrezinsky/lunchbot/internal/services"
)

const qrSize = 256

// ==================== Pages ====================

// SurveyPageData is passed to the survey page template
type SurveyPageData struct {
	Survey *SurveyResponse
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := SurveyPageData{}

	survey, err := h.Survey.CurrentSurvey(r.Context())
	switch {
	case err == nil:
		resp := newSurveyResponse(survey)
		data.Survey = &resp
	case !stderrors.Is(err, services.ErrNoActiveSurvey):
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.templates.Survey.Execute(w, data)
}

// ==================== Surveys ====================

func (h *Handlers) handleGetCurrentSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := h.Survey.CurrentSurvey(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, newSurveyResponse(survey))
}

func (h *Handlers) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	weekID := chi.URLParam(r, "weekID")
	if weekID == "" {
		h.respondError(w, r, BadRequest("Missing weekID parameter"))
		return
	}

	survey, err := h.Survey.Survey(r.Context(), weekID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, newSurveyResponse(survey))
}

// handleSurveyQR returns a PNG QR code linking to the survey page
func (h *Handlers) handleSurveyQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(h.surveyURL(r), qrcode.Medium, qrSize)
	if err != nil {
		h.respondError(w, r, InternalError(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

// surveyURL is the configured base URL, or the address the request came in on
func (h *Handlers) surveyURL(r *http.Request) string {
	if h.opts.BaseURL != "" {
		return strings.TrimSuffix(h.opts.BaseURL, "/") + "/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

// ==================== Options ====================

func (h *Handlers) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.Catalog.ListOptions(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, options)
}

func (h *Handlers) handlePutOption(w http.ResponseWriter, r *http.Request) {
	var req OptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	option := models.Option{ID: chi.URLParam(r, "id"), Name: req.Name, Website: req.Website}
	if err := h.Catalog.SaveOption(r.Context(), option); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, option)
}

func (h *Handlers) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteOption(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondDeleted(w)
}

// ==================== Triggers ====================

// handleTrigger runs a scheduled operation on demand. Failures of the
// operation itself are reported in the body with a 200, like any acknowledged trigger.
func (h *Handlers) handleTrigger(w http.ResponseWriter, r *http.Request) {
	result := h.Dispatcher.Trigger(r.Context(), chi.URLParam(r, "name"))
	if stderrors.Is(result.Err, router.ErrUnknownTrigger) {
		h.respondError(w, r, NotFound("Unknown trigger: "+result.Name))
		return
	}

	resp := TriggerResponse{
		Trigger:     result.Name,
		Message:     result.Message,
		Destination: result.Destination,
		Delivered:   result.Delivered,
	}
	if result.Err != nil {
		resp.Error = ToAPIError(result.Err).Message
	}
	respondOK(w, resp)
}
