// Package content turns file payloads from the backend into printable text
// and lays vulnerabilities over it line by line.
package content

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Placeholder is shown when a payload cannot be turned into text.
const Placeholder = "<unable to display content>"

// Payload is one of RawText, Base64Encoded or StructuredFallback.
type Payload interface {
	payload()
}

// RawText is content that is already printable.
type RawText struct {
	Text string
}

// Base64Encoded is content tagged (or shaped) as base64.
type Base64Encoded struct {
	Data string
}

// StructuredFallback is any other JSON value. It is shown pretty-printed.
type StructuredFallback struct {
	Value interface{}
}

func (RawText) payload()            {}
func (Base64Encoded) payload()      {}
func (StructuredFallback) payload() {}

// envelope is the object form of a file response.
type envelope struct {
	Content  *string `json:"content"`
	Encoding string  `json:"encoding"`
}

// Classify inspects a raw file response body. Bodies that are not JSON are
// treated as plain text; a JSON string is its own text; an object with a
// string "content" field is base64 unless its encoding names something else.
func Classify(raw []byte) Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return RawText{}
	}
	if !json.Valid(trimmed) {
		return RawText{Text: string(raw)}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return RawText{Text: s}
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Content != nil {
			switch strings.ToLower(env.Encoding) {
			case "", "base64":
				return Base64Encoded{Data: *env.Content}
			default:
				return RawText{Text: *env.Content}
			}
		}
	}

	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return RawText{Text: string(raw)}
	}
	return StructuredFallback{Value: v}
}

// Normalize returns printable text for p. It never fails: malformed base64
// yields the encoded string itself and anything unprintable yields Placeholder.
func Normalize(p Payload) string {
	switch v := p.(type) {
	case RawText:
		return v.Text
	case Base64Encoded:
		decoded, err := decodeBase64(v.Data)
		if err != nil {
			return v.Data
		}
		if !utf8.Valid(decoded) {
			return Placeholder
		}
		return string(decoded)
	case StructuredFallback:
		if v.Value == nil {
			return Placeholder
		}
		out, err := json.MarshalIndent(v.Value, "", "  ")
		if err != nil {
			return Placeholder
		}
		return string(out)
	}
	return Placeholder
}

// Text is Normalize(Classify(raw)).
func Text(raw []byte) string {
	return Normalize(Classify(raw))
}

// decodeBase64 accepts standard base64 with or without padding, tolerating
// the line breaks source hosts wrap encoded files with.
func decodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if b, err := base64.StdEncoding.DecodeString(clean); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(clean)
}
