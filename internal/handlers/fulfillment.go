package handlers

import (
	"net/http"

	"github.com/abrezinsky/lunchbot/internal/router"
)

// handleFulfillment answers Dialogflow webhook calls. The reply text goes back
// in the response for Dialogflow to deliver; only a nag is sent directly.
func (h *Handlers) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	var req FulfillmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	reply := h.Dispatcher.Dispatch(r.Context(), routerRequest(&req))
	respondOK(w, FulfillmentResponse{
		Speech:      reply.Text,
		DisplayText: reply.Text,
		Source:      "lunchbot",
	})
}

func routerRequest(req *FulfillmentRequest) router.Request {
	return router.Request{
		Action:      req.Result.Action,
		Parameters:  req.parameters(),
		UserID:      req.userID(),
		Fulfillment: req.Result.Fulfillment.Speech,
	}
}
