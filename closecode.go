package wazzap

import "strings"

// Close codes the server uses.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseUnsupportedData = 1003
	CloseAbnormal        = 1006
	ClosePolicyViolation = 1008
)

// CloseEvent describes how a connection ended.
type CloseEvent struct {
	Code   int
	Reason string
	// Clean is true when a close frame was exchanged.
	Clean bool
	// Rejected is set when a transport error occurred before the connection
	// opened or while it was already closing.
	Rejected bool
}

// CloseClass is the outcome of classifying a CloseEvent.
type CloseClass int

const (
	CloseClean CloseClass = iota
	CloseSessionInvalid
	CloseTransient
	CloseTerminal
)

func (c CloseClass) String() string {
	switch c {
	case CloseClean:
		return "clean"
	case CloseSessionInvalid:
		return "session_invalid"
	case CloseTransient:
		return "transient"
	case CloseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

var (
	invalidSessionPhrases = []string{"invalid session", "invalid token", "log in again"}
	goingAwayPhrases      = []string{"session expired", "server restart", "reconnect"}
)

// ClassifyClose applies the close policy. Rules are evaluated in order and
// the first match wins; attempts is the number of reconnects already
// scheduled since the last successful open.
func ClassifyClose(ev CloseEvent, attempts, maxAttempts int) CloseClass {
	switch {
	case ev.Code == CloseNormal:
		return CloseClean
	case ev.Code == ClosePolicyViolation && mentions(ev.Reason, invalidSessionPhrases):
		return CloseSessionInvalid
	case ev.Code == CloseGoingAway && (strings.TrimSpace(ev.Reason) == "" || mentions(ev.Reason, goingAwayPhrases)):
		return CloseSessionInvalid
	case ev.Rejected && ev.Code == CloseAbnormal && !ev.Clean:
		return CloseSessionInvalid
	case attempts < maxAttempts:
		return CloseTransient
	default:
		return CloseTerminal
	}
}

func mentions(reason string, phrases []string) bool {
	r := strings.ToLower(reason)
	for _, p := range phrases {
		if strings.Contains(r, p) {
			return true
		}
	}
	return false
}
