// Package llmjson locates and decodes JSON embedded in free-form model output.
//
// Model replies often wrap the structured result in prose, fenced code blocks
// or trailing commentary. Extract isolates the first JSON value it can decode
// and Find the first one a caller accepts. It never panics.
package llmjson

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*\\n?(.*?)```")

// Extract returns the first JSON object or array found in text.
func Extract(text string) (json.RawMessage, bool) {
	return Find(text, func(json.RawMessage) bool { return true })
}

// Find returns the first candidate JSON value in text that match accepts.
//
// Candidates are tried in order: the whole trimmed text, the body of each
// fenced code block, then every '{' or '[' position from left to right. A
// value that decodes but has the wrong shape (a "[1]" citation in prose)
// does not stop the search.
func Find(text string, match func(json.RawMessage) bool) (json.RawMessage, bool) {
	text = strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
	if text == "" {
		return nil, false
	}

	if raw, ok := decodeWhole(text); ok && match(raw) {
		return raw, true
	}

	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if raw, ok := decodeWhole(body); ok && match(raw) {
			return raw, true
		}
		if raw, ok := scan(body, match); ok {
			return raw, true
		}
	}

	return scan(text, match)
}

// Unwrap returns the value under a top-level "result" key when present, the
// envelope some agents put around their answer, and raw otherwise.
func Unwrap(raw json.RawMessage) json.RawMessage {
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	if len(envelope.Result) == 0 || bytes.Equal(envelope.Result, []byte("null")) {
		return raw
	}
	// A string result may itself carry an embedded JSON document.
	var inner string
	if err := json.Unmarshal(envelope.Result, &inner); err == nil {
		if nested, ok := Extract(inner); ok {
			return nested
		}
		return raw
	}
	return envelope.Result
}

func decodeWhole(s string) (json.RawMessage, bool) {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// scan tries a streaming decode at every opening brace or bracket, so trailing
// text after a complete value is ignored.
func scan(s string, match func(json.RawMessage) bool) (json.RawMessage, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil || !match(raw) {
			continue
		}
		return raw, true
	}
	return nil, false
}
