package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// fields as sanitized strings.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData, p.err = decodeJSONObject(trimmed)
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// decodeJSONObject keeps numbers as json.Number so amounts reach the decimal
// parser with every digit the client sent.
func decodeJSONObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	data := make(map[string]any)
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON body")
	}
	return data, nil
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		return p.formData.Has(key)
	}
	return false
}

// Bool returns the boolean value of key and whether it was a valid boolean.
func (p *RequestBodyParser) Bool(key string) (bool, bool) {
	if p.jsonData != nil {
		if v, ok := p.jsonData[key].(bool); ok {
			return v, true
		}
	}
	b, err := strconv.ParseBool(p.Get(key))
	return b, err == nil
}

// Draft maps the body onto a transaction draft. Amount accepts a JSON number
// or a string.
func (p *RequestBodyParser) Draft() core.Draft {
	return core.Draft{
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		Date:        p.Get("date"),
		Type:        core.TxType(strings.ToLower(p.Get("type"))),
		Description: p.Get("description"),
		Notes:       p.Get("notes"),
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFilter reads category and type from query parameters. ok is false
// when no filter parameter was given.
func ParseFilter(query url.Values) (f core.Filter, ok bool, err error) {
	if !query.Has("category") && !query.Has("type") {
		return core.Filter{}, false, nil
	}
	f.Category = sanitizeInput(query.Get("category"))
	f.Type = core.TxType(strings.ToLower(sanitizeInput(query.Get("type"))))
	if err := validateFilterType(f.Type); err != nil {
		return core.Filter{}, true, err
	}
	if f.Type == "" {
		f.Type = core.TypeAll
	}
	return f, true, nil
}

func validateFilterType(t core.TxType) error {
	if t == "" || t == core.TypeAll || t.IsValid() {
		return nil
	}
	return errInvalidFilterType
}
