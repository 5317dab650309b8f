package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"mime"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"lingua-proxy-go/internal/model"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// EncodeBody serialises b for the upstream request. contentType is the
// Content-Type already selected for the forwarded request; the returned
// content type, when non-empty, replaces it.
//
// Bytes and text pass through unchanged. Form fields are urlencoded. Any
// other structured value is urlencoded when contentType is a forms type and
// written as compact JSON otherwise, in which case the content type becomes
// application/json.
func EncodeBody(b model.Body, contentType string) ([]byte, string, error) {
	switch b.Kind {
	case model.BodyNone:
		return nil, "", nil
	case model.BodyBytes:
		return b.Bytes, "", nil
	case model.BodyText:
		return []byte(b.Text), "", nil
	case model.BodyForm:
		ct := ""
		if contentType == "" {
			ct = contentTypeForm
		}
		return []byte(EncodeForm(b.Form)), ct, nil
	case model.BodyValue:
		if isFormContentType(contentType) {
			fields, err := formFields(b.Value)
			if err != nil {
				return nil, "", err
			}
			return []byte(EncodeForm(fields)), "", nil
		}
		data, err := encodeJSON(b.Value)
		if err != nil {
			return nil, "", err
		}
		return data, contentTypeJSON, nil
	default:
		return nil, "", fmt.Errorf("unknown body kind %d", b.Kind)
	}
}

// DecodeBody turns a raw inbound body into the shape a body-parsing server
// would hand over: JSON becomes a structured value, urlencoded forms become
// fields, text stays text. Anything else, or anything that fails to decode,
// is kept as raw bytes.
func DecodeBody(contentType string, raw []byte) model.Body {
	if len(raw) == 0 {
		return model.Body{}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return model.RawBody(raw)
	}

	switch {
	case mediaType == contentTypeJSON:
		trimmed := bytes.TrimSpace(raw)
		if !json.Valid(trimmed) {
			return model.RawBody(raw)
		}
		if bytes.Equal(trimmed, []byte("null")) {
			return model.Body{}
		}
		return model.ValueBody(json.RawMessage(trimmed))
	case mediaType == contentTypeForm:
		fields, err := ParseForm(string(raw))
		if err != nil {
			return model.RawBody(raw)
		}
		return model.FormBody(fields...)
	case strings.HasPrefix(mediaType, "text/"):
		return model.TextBody(string(raw))
	default:
		return model.RawBody(raw)
	}
}

// EncodeForm writes fields in order as application/x-www-form-urlencoded.
func EncodeForm(fields []model.FormField) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}
	return sb.String()
}

// ParseForm decodes an urlencoded body, keeping field order.
func ParseForm(raw string) ([]model.FormField, error) {
	var fields []model.FormField
	for pair := range strings.SplitSeq(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("form key %q: %w", k, err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("form value for %q: %w", key, err)
		}
		fields = append(fields, model.FormField{Key: key, Value: val})
	}
	return fields, nil
}

func isFormContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), contentTypeForm)
}

// encodeJSON writes v as compact JSON without HTML escaping and without the
// trailing newline json.Encoder appends.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// formFields flattens a structured value into form fields. Maps are emitted
// in key order; nested values are written as JSON text.
func formFields(v any) ([]model.FormField, error) {
	switch val := v.(type) {
	case []model.FormField:
		return val, nil
	case url.Values:
		var fields []model.FormField
		for _, k := range slices.Sorted(maps.Keys(val)) {
			for _, s := range val[k] {
				fields = append(fields, model.FormField{Key: k, Value: s})
			}
		}
		return fields, nil
	case map[string]string:
		fields := make([]model.FormField, 0, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			fields = append(fields, model.FormField{Key: k, Value: val[k]})
		}
		return fields, nil
	case map[string]any:
		fields := make([]model.FormField, 0, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			s, err := formValue(val[k])
			if err != nil {
				return nil, err
			}
			fields = append(fields, model.FormField{Key: k, Value: s})
		}
		return fields, nil
	}

	// json.RawMessage, structs and anything else: round-trip through JSON.
	raw, ok := v.(json.RawMessage)
	if !ok {
		data, err := encodeJSON(v)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("form body must be an object: %w", err)
	}
	return formFields(obj)
}

func formValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		data, err := encodeJSON(val)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
