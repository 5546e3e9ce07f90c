package stream

import (
	"encoding/json"
	"errors"
	"strings"

	"aichat/internal/provider"
)

// DataPrefix is the SSE field carrying payloads.
const DataPrefix = "data"

// DoneSentinel terminates OpenAI-style event streams.
const DoneSentinel = "[DONE]"

var errInvalidJSON = errors.New("frame is not valid JSON")

var controlFields = []string{"event:", "id:", "retry:"}

// DecodeFrame extracts the JSON payload of a frame. With an empty prefix
// the frame is the payload. Otherwise a leading "<prefix>:" is stripped,
// SSE control lines and the done sentinel are skipped (ok is false), and
// anything else is taken as-is.
//
// Payloads that are not valid JSON fail with *provider.DecodeError.
func DecodeFrame(frame, prefix string) (payload []byte, ok bool, err error) {
	data := strings.TrimSpace(frame)
	if data == "" {
		return nil, false, nil
	}

	if prefix != "" {
		if rest, found := strings.CutPrefix(data, prefix+":"); found {
			data = strings.TrimSpace(rest)
		} else if isControlLine(data) {
			return nil, false, nil
		}
		if data == DoneSentinel || data == "" {
			return nil, false, nil
		}
	}

	if !json.Valid([]byte(data)) {
		return nil, false, &provider.DecodeError{Payload: data, Err: errInvalidJSON}
	}
	return []byte(data), true, nil
}

func isControlLine(line string) bool {
	if strings.HasPrefix(line, ":") {
		return true
	}
	for _, field := range controlFields {
		if strings.HasPrefix(line, field) {
			return true
		}
	}
	return false
}
