package model

import "testing"

func TestBodyConstructors(t *testing.T) {
	tests := []struct {
		name    string
		body    Body
		want    BodyKind
		present bool
	}{
		{"empty bytes", RawBody(nil), BodyNone, false},
		{"bytes", RawBody([]byte{0}), BodyBytes, true},
		{"empty text", TextBody(""), BodyNone, false},
		{"text", TextBody("hi"), BodyText, true},
		{"form without fields", FormBody(), BodyForm, true},
		{"nil value", ValueBody(nil), BodyNone, false},
		{"value", ValueBody(map[string]any{}), BodyValue, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.body.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", tt.body.Kind, tt.want)
			}
			if got := tt.body.Present(); got != tt.present {
				t.Errorf("Present() = %v, want %v", got, tt.present)
			}
		})
	}
}
