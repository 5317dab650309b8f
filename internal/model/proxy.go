// Package model defines the request-scoped types passed between the forwarder layers.
package model

import (
	"net/http"
)

// BodyKind identifies how an inbound body was delivered to the forwarder.
type BodyKind int

const (
	BodyNone  BodyKind = iota // no body
	BodyBytes                 // raw bytes, forwarded unchanged
	BodyText                  // text, forwarded unchanged
	BodyForm                  // decoded form fields, re-encoded as urlencoded
	BodyValue                 // decoded structured value, re-encoded as JSON
)

func (k BodyKind) String() string {
	switch k {
	case BodyNone:
		return "none"
	case BodyBytes:
		return "bytes"
	case BodyText:
		return "text"
	case BodyForm:
		return "form"
	case BodyValue:
		return "value"
	default:
		return "unknown"
	}
}

// FormField is a single decoded form key/value pair. Fields keep their wire order.
type FormField struct {
	Key   string
	Value string
}

// Body is an inbound request body in whichever shape the server decoded it to.
// Only the field matching Kind is meaningful.
type Body struct {
	Kind  BodyKind
	Bytes []byte
	Text  string
	Form  []FormField
	Value any
}

// RawBody wraps raw bytes. An empty slice is treated as no body.
func RawBody(b []byte) Body {
	if len(b) == 0 {
		return Body{}
	}
	return Body{Kind: BodyBytes, Bytes: b}
}

// TextBody wraps a string. An empty string is treated as no body.
func TextBody(s string) Body {
	if s == "" {
		return Body{}
	}
	return Body{Kind: BodyText, Text: s}
}

// FormBody wraps decoded form fields.
func FormBody(fields ...FormField) Body {
	return Body{Kind: BodyForm, Form: fields}
}

// ValueBody wraps a decoded structured value such as a JSON object.
// A nil value is treated as no body.
func ValueBody(v any) Body {
	if v == nil {
		return Body{}
	}
	return Body{Kind: BodyValue, Value: v}
}

// Present reports whether the body carries anything to forward.
func (b Body) Present() bool {
	return b.Kind != BodyNone
}

// InboundRequest is a caller request as received under the routing prefix.
type InboundRequest struct {
	Method   string
	Path     string // escaped path including the routing prefix
	RawQuery string
	Header   http.Header
	Body     Body
}

// ForwardedRequest is the request sent to the upstream origin.
type ForwardedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte // nil means no body
}

// UpstreamResponse is a fully buffered upstream response.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}
