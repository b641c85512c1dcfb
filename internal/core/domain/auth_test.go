package domain

import (
	"errors"
	"testing"
)

func TestAuthorize(t *testing.T) {
	doc := &Document{ID: "doc-1", UserID: "user-a"}

	tests := []struct {
		name    string
		doc     *Document
		userID  string
		wantErr bool
	}{
		{"owner", doc, "user-a", false},
		{"other user", doc, "user-b", true},
		{"empty user", doc, "", true},
		{"missing record", nil, "user-a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Authorize(tt.doc, tt.userID)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFoundOrForbidden) {
					t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
				}
				if got != nil {
					t.Error("expected nil record on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.doc {
				t.Error("expected the same record back")
			}
		})
	}
}

func TestAuthorizeSummary(t *testing.T) {
	s := &ConversationSummary{ConversationID: "conv-1", UserID: "user-a"}

	if _, err := Authorize(s, "user-a"); err != nil {
		t.Errorf("owner should be authorized: %v", err)
	}
	if _, err := Authorize(s, "user-b"); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Errorf("expected ErrNotFoundOrForbidden, got %v", err)
	}

	var missing *ConversationSummary
	if _, err := Authorize(missing, "user-a"); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Errorf("expected ErrNotFoundOrForbidden for nil summary, got %v", err)
	}
}
