package service

import (
	"encoding/json"
	"math"
	"net/url"
	"testing"

	. "github.com/onsi/gomega"

	"lingua-proxy-go/internal/model"
)

func TestEncodeBody_RawBytesUnchanged(t *testing.T) {
	g := NewWithT(t)

	in := []byte{0x00, 0xff, '{', 'a', '}', '\n'}
	data, ct, err := EncodeBody(model.RawBody(in), "application/octet-stream")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(data).To(Equal(in))
	g.Expect(ct).To(BeEmpty())
}

func TestEncodeBody_TextUnchanged(t *testing.T) {
	g := NewWithT(t)

	data, ct, err := EncodeBody(model.TextBody(`{ "spaced" : true }`), "")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal(`{ "spaced" : true }`))
	g.Expect(ct).To(BeEmpty())
}

func TestEncodeBody_None(t *testing.T) {
	g := NewWithT(t)

	data, ct, err := EncodeBody(model.Body{}, "application/json")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(data).To(BeNil())
	g.Expect(ct).To(BeEmpty())
}

func TestEncodeBody_ValueAsJSON(t *testing.T) {
	g := NewWithT(t)

	data, ct, err := EncodeBody(model.ValueBody(map[string]any{"a": 1}), "")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal(`{"a":1}`))
	g.Expect(ct).To(Equal("application/json"))
}

func TestEncodeBody_ValueForcesJSONContentType(t *testing.T) {
	g := NewWithT(t)

	_, ct, err := EncodeBody(model.ValueBody(map[string]any{"text": "hi"}), "text/plain")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ct).To(Equal("application/json"))
}

func TestEncodeBody_ValueNoHTMLEscaping(t *testing.T) {
	g := NewWithT(t)

	data, _, err := EncodeBody(model.ValueBody(map[string]any{"text": "<b>&</b>"}), "")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal(`{"text":"<b>&</b>"}`))
}

func TestEncodeBody_RawMessageCompacted(t *testing.T) {
	g := NewWithT(t)

	body := model.ValueBody(json.RawMessage(`{ "text" : "bonjour", "target_lang" : "French", "n": 1.50 }`))
	data, ct, err := EncodeBody(body, "application/json")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal(`{"text":"bonjour","target_lang":"French","n":1.50}`))
	g.Expect(ct).To(Equal("application/json"))
}

func TestEncodeBody_ValueWithFormContentType(t *testing.T) {
	g := NewWithT(t)

	body := model.ValueBody(map[string]any{"username": "a@b.com", "password": "x"})
	data, ct, err := EncodeBody(body, "application/x-www-form-urlencoded; charset=UTF-8")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal("password=x&username=a%40b.com"))
	g.Expect(ct).To(BeEmpty())
}

func TestEncodeBody_FormFieldsKeepOrder(t *testing.T) {
	g := NewWithT(t)

	body := model.FormBody(
		model.FormField{Key: "username", Value: "a@b.com"},
		model.FormField{Key: "password", Value: "x"},
	)
	data, ct, err := EncodeBody(body, "application/x-www-form-urlencoded")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal("username=a%40b.com&password=x"))
	g.Expect(ct).To(BeEmpty())
}

func TestEncodeBody_FormWithoutContentType(t *testing.T) {
	g := NewWithT(t)

	_, ct, err := EncodeBody(model.FormBody(model.FormField{Key: "q", Value: "a b"}), "")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ct).To(Equal("application/x-www-form-urlencoded"))
}

func TestEncodeBody_UnencodableValue(t *testing.T) {
	g := NewWithT(t)

	_, _, err := EncodeBody(model.ValueBody(map[string]any{"n": math.NaN()}), "")

	g.Expect(err).To(HaveOccurred())
}

func TestEncodeBody_FormFromNonObject(t *testing.T) {
	g := NewWithT(t)

	_, _, err := EncodeBody(model.ValueBody([]int{1, 2}), "application/x-www-form-urlencoded")

	g.Expect(err).To(MatchError(ContainSubstring("must be an object")))
}

func TestFormFields_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"url.Values", url.Values{"b": {"2", "3"}, "a": {"1"}}, "a=1&b=2&b=3"},
		{"map of strings", map[string]string{"lang": "fr", "text": "été"}, "lang=fr&text=%C3%A9t%C3%A9"},
		{"scalars", map[string]any{"ok": true, "n": 2.5, "none": nil}, "n=2.5&none=null&ok=true"},
		{"nested value", map[string]any{"tags": []string{"x", "y"}}, "tags=%5B%22x%22%2C%22y%22%5D"},
		{"raw json", json.RawMessage(`{"page":1,"per_page":20}`), "page=1&per_page=20"},
		{"struct", struct {
			Email string `json:"email"`
		}{"a@b.com"}, "email=a%40b.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			fields, err := formFields(tt.value)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(EncodeForm(fields)).To(Equal(tt.want))
		})
	}
}

func TestParseForm(t *testing.T) {
	g := NewWithT(t)

	fields, err := ParseForm("username=a%40b.com&password=x+y&&flag")

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(fields).To(Equal([]model.FormField{
		{Key: "username", Value: "a@b.com"},
		{Key: "password", Value: "x y"},
		{Key: "flag", Value: ""},
	}))
}

func TestParseForm_BadEscape(t *testing.T) {
	g := NewWithT(t)

	_, err := ParseForm("a=%zz")

	g.Expect(err).To(HaveOccurred())
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		raw         string
		wantKind    model.BodyKind
	}{
		{"empty", "application/json", "", model.BodyNone},
		{"json object", "application/json", `{"a":1}`, model.BodyValue},
		{"json with charset", "application/json; charset=utf-8", `{"a":1}`, model.BodyValue},
		{"json null", "application/json", "null", model.BodyNone},
		{"invalid json", "application/json", `{"a":`, model.BodyBytes},
		{"form", "application/x-www-form-urlencoded", "a=1&b=2", model.BodyForm},
		{"bad form", "application/x-www-form-urlencoded", "a=%zz", model.BodyBytes},
		{"text", "text/plain", "hello", model.BodyText},
		{"binary", "application/octet-stream", "\x00\x01", model.BodyBytes},
		{"no content type", "", "hello", model.BodyBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			got := DecodeBody(tt.contentType, []byte(tt.raw))
			g.Expect(got.Kind).To(Equal(tt.wantKind), "kind = %s", got.Kind)
		})
	}
}

func TestDecodeThenEncode_LoginForm(t *testing.T) {
	g := NewWithT(t)

	ct := "application/x-www-form-urlencoded"
	data, outCT, err := EncodeBody(DecodeBody(ct, []byte("username=a%40b.com&password=x")), ct)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal("username=a%40b.com&password=x"))
	g.Expect(outCT).To(BeEmpty())
}
