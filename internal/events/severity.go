package events

import (
	"regexp"
	"strings"
)

// EventSeverity maps an event to one of error, warning, success or info.
// Error and warning kinds always win; otherwise the message is sniffed for
// keywords. The result is advisory and does not affect bundling.
func EventSeverity(kind Kind, message string) Kind {
	switch kind {
	case KindError:
		return KindError
	case KindWarning:
		return KindWarning
	}

	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "error") || strings.Contains(msg, "failed"):
		return KindError
	case strings.Contains(msg, "warning") || strings.Contains(msg, "warn"):
		return KindWarning
	case kind == KindSuccess || strings.Contains(msg, "success") || strings.Contains(msg, "completed"):
		return KindSuccess
	}
	return KindInfo
}

var noiseRe = regexp.MustCompile(`(?i)\b(heartbeat|ping|keep-?alive)\b`)

// ShouldHideEvent reports whether e is connectivity noise that default
// views suppress.
func ShouldHideEvent(e Event) bool {
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = FormatPayloadPreview(e.Payload)
	}
	return noiseRe.MatchString(msg)
}
