package resolver

import (
	"bytes"
	"encoding/json"
)

// envelope is the resolver's reply wrapper. Every field is kept raw so its
// presence and type can be checked before use.
type envelope struct {
	Code json.RawMessage `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// payload is the data object of a successful envelope.
type payload struct {
	Title    json.RawMessage `json:"title"`
	CoverURL json.RawMessage `json:"cover_url"`
	Author   json.RawMessage `json:"author"`
	VideoURL json.RawMessage `json:"video_url"`
}

// errorBody is the JSON body the resolver sends with HTTP errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// successCode reports whether raw is the number 200.
func successCode(raw json.RawMessage) bool {
	var code float64
	if err := json.Unmarshal(raw, &code); err != nil {
		return false
	}
	return code == 200
}

// stringField returns raw as a string when it holds a JSON string.
func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// nonEmptyString returns raw as a string when it holds a non-empty JSON string.
func nonEmptyString(raw json.RawMessage) (string, bool) {
	s, ok := stringField(raw)
	return s, ok && s != ""
}

// isObject reports whether raw holds a JSON object.
func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// isBlank reports whether raw is absent or holds a null, empty or zero value.
func isBlank(raw json.RawMessage) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

// authorAvatar returns author.avatar when author is an object with a non-empty avatar.
func authorAvatar(author json.RawMessage) (string, bool) {
	if !isObject(author) {
		return "", false
	}
	var a struct {
		Avatar json.RawMessage `json:"avatar"`
	}
	if err := json.Unmarshal(author, &a); err != nil {
		return "", false
	}
	return nonEmptyString(a.Avatar)
}

// detailMessage extracts a client-facing message from a resolver error body.
// ok is false when the body is not a JSON object.
func detailMessage(body []byte) (detail string, found bool, ok bool) {
	if !isObject(body) {
		return "", false, false
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", false, false
	}
	if len(eb.Detail) == 0 || string(eb.Detail) == "null" {
		return "", false, true
	}
	if s, isString := stringField(eb.Detail); isString {
		return s, true, true
	}
	// Structured details such as validation error lists are passed through as JSON
	var compact bytes.Buffer
	if err := json.Compact(&compact, eb.Detail); err != nil {
		return "", false, true
	}
	return compact.String(), true, true
}
