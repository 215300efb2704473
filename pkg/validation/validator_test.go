package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-graphview/pkg/document"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *document.Document
		wantErr string
	}{
		{"valid", &document.Document{ID: "doc-1", SerializedGraph: "{}"}, ""},
		{"nil", nil, "cannot be nil"},
		{"missing id", &document.Document{SerializedGraph: "{}"}, "field is required"},
		{"id too long", &document.Document{ID: strings.Repeat("x", 300)}, "must not exceed 256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWorkspaceID(t *testing.T) {
	valid := []string{"personal", "team-1", "ws_2024.notes"}
	invalid := []string{"", "../etc", "a/b", ".hidden", strings.Repeat("w", 200)}

	for _, id := range valid {
		if err := ValidateWorkspaceID(id); err != nil {
			t.Errorf("ValidateWorkspaceID(%q) = %v", id, err)
		}
	}
	for _, id := range invalid {
		if err := ValidateWorkspaceID(id); !errors.Is(err, ErrInvalidWorkspaceID) {
			t.Errorf("ValidateWorkspaceID(%q) = %v, want ErrInvalidWorkspaceID", id, err)
		}
	}
}

func TestValidateStruct(t *testing.T) {
	type listen struct {
		Port int    `validate:"gte=1,lte=65535"`
		Mode string `validate:"oneof=dev prod"`
	}

	if err := ValidateStruct(&listen{Port: 8080, Mode: "dev"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateStruct(&listen{Port: 0, Mode: "dev"}); err == nil || !strings.Contains(err.Error(), "at least 1") {
		t.Errorf("port error = %v", err)
	}
	if err := ValidateStruct(&listen{Port: 1, Mode: "qa"}); err == nil || !strings.Contains(err.Error(), "one of") {
		t.Errorf("mode error = %v", err)
	}
}
