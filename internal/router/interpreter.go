package router

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// Interpreter turns plain chat text into a Request. It understands a small
// command vocabulary:
//
//	vote <option> | i vote for <option>           record a vote
//	start                                          start this week's survey
//	results | stop | tally                         close voting and pick a winner
//	nag                                            remind the booker
//	booked | i booked | have booked                mark the table as booked
//	not booked | notbooked                         acknowledge without booking
//	hi | hello | help                              greeting
type Interpreter struct {
	BotUserID string
}

// Mentioned reports whether text mentions the bot
func (i Interpreter) Mentioned(text string) bool {
	return i.BotUserID != "" && strings.Contains(text, "<@"+i.BotUserID+">")
}

// Interpret builds a Request for text sent by user in channel
func (i Interpreter) Interpret(text, user, channel string) Request {
	req := Request{SourceChannel: channel, UserID: user, Action: "input.unknown"}

	cleaned := strings.Join(strings.Fields(mentionPattern.ReplaceAllString(text, " ")), " ")
	cleaned = strings.TrimRight(cleaned, "!.?")
	lower := strings.ToLower(cleaned)

	switch lower {
	case "":
		return req
	case "start", "start survey", "survey":
		req.Action = "survey.start"
		return req
	case "results", "stop", "tally", "who won":
		req.Action = "survey.stop"
		return req
	case "nag":
		req.Action = "nag"
		return req
	case "booked", "i booked", "have booked", "i have booked", "done":
		req.Action = "havebooked"
		return req
	case "not booked", "notbooked", "not yet":
		req.Action = "notbooked"
		return req
	case "hi", "hello", "hey", "help":
		req.Action = "input.welcome"
		return req
	}

	for _, prefix := range []string{"i vote for ", "i vote ", "vote for ", "vote "} {
		if strings.HasPrefix(lower, prefix) {
			req.Action = "vote"
			req.Parameters = map[string]string{"pub": strings.TrimSpace(cleaned[len(prefix):])}
			return req
		}
	}
	return req
}
