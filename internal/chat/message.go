package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// UserMessage renders err for display: first letter capitalised and
// terminal punctuation guaranteed.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "Unknown error."
	}

	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]

	switch msg[len(msg)-1] {
	case '.', '!', '?':
		return msg
	}
	return msg + "."
}
