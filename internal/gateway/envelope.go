package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// unwrap strips the {success, data, message} envelope. Bodies that are not
// an envelope are returned as they are.
func unwrap(body []byte) (payload []byte, message string, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, "", true
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Success == nil {
		return trimmed, "", true
	}
	if !*env.Success {
		return nil, env.Message, false
	}
	return env.Data, env.Message, true
}

type errorBody struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
}

// errorDetails pulls a message and code out of an error body. Both
// {"message": "..."} and {"error": {"code", "message"}} are understood.
func errorDetails(body []byte) (message, code string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", ""
	}
	message, code = eb.Message, eb.Code

	if len(eb.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		var plain string
		switch {
		case json.Unmarshal(eb.Error, &nested) == nil:
			if message == "" {
				message = nested.Message
			}
			if code == "" {
				code = nested.Code
			}
		case json.Unmarshal(eb.Error, &plain) == nil:
			if message == "" {
				message = plain
			}
		}
	}
	return strings.TrimSpace(message), code
}

// overflowMarkers are the database's own wordings for a number that does
// not fit its column.
var overflowMarkers = []string{
	"numeric field overflow",
	"out of range for type",
	"value too large",
}

// isPriceOverflow recognizes the backend failing to store the total price of
// a very long stay. Only booking creation computes a total.
func isPriceOverflow(method, path, message string) bool {
	if method != http.MethodPost || strings.TrimRight(path, "/") != "/bookings" {
		return false
	}
	m := strings.ToLower(message)
	for _, marker := range overflowMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
