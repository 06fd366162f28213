package validator

import (
	"testing"

	govalidator "github.com/go-playground/validator/v10"
)

type startPayload struct {
	Level string `json:"level" validate:"required,jlpt_level"`
	Title string `json:"exam_title" validate:"required,max=10"`
}

func TestTranslateErrors(t *testing.T) {
	v := govalidator.New()
	register(v)

	tests := []struct {
		name    string
		in      startPayload
		wantErr map[string]string
	}{
		{"valid lower case level", startPayload{Level: "n3", Title: "Mock"}, nil},
		{"unknown level", startPayload{Level: "N6", Title: "Mock"}, map[string]string{
			"level": "level must be one of N1, N2, N3, N4, N5",
		}},
		{"missing title", startPayload{Level: "N1"}, map[string]string{
			"exam_title": "exam_title is a required field",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			got := TranslateErrors(err)
			for field, msg := range tt.wantErr {
				if got[field] != msg {
					t.Errorf("field %s: got %q, want %q", field, got[field], msg)
				}
			}
		})
	}
}
