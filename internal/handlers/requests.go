package handlers

import "fmt"

// OptionRequest is the body of PUT /api/options/{id}
type OptionRequest struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
}

// FulfillmentRequest is the subset of a Dialogflow (v1) webhook call we use
type FulfillmentRequest struct {
	Result struct {
		Action      string                 `json:"action"`
		Parameters  map[string]interface{} `json:"parameters"`
		Fulfillment struct {
			Speech string `json:"speech"`
		} `json:"fulfillment"`
	} `json:"result"`
	OriginalRequest struct {
		Source string `json:"source"`
		Data   struct {
			Event struct {
				User    string `json:"user"`
				Channel string `json:"channel"`
			} `json:"event"`
			User string `json:"user"`
		} `json:"data"`
	} `json:"originalRequest"`
	SessionID string `json:"sessionId"`
}

// parameters flattens NLU parameters to strings, dropping empty values
func (f *FulfillmentRequest) parameters() map[string]string {
	params := make(map[string]string, len(f.Result.Parameters))
	for k, v := range f.Result.Parameters {
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		params[k] = s
	}
	return params
}

// userID is the chat user behind the request, falling back to the session
func (f *FulfillmentRequest) userID() string {
	data := f.OriginalRequest.Data
	switch {
	case data.Event.User != "":
		return data.Event.User
	case data.User != "":
		return data.User
	}
	return f.SessionID
}
