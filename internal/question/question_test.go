package question

import (
	"strings"
	"testing"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/config"
)

var businessSchema = Static{
	"business": {
		{Key: "why_join", Type: "textarea", Required: true, WordLimit: 5},
		{Key: "linkedin", Type: "text", Required: false},
		{Key: "resume", Type: "file", Required: true},
	},
}

func TestValidateAnswers_OK(t *testing.T) {
	err := ValidateAnswers(businessSchema, "business",
		map[string]string{"why_join": "I like building things"},
		map[string]string{"resume": "uploads/abc.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAnswers_MissingRequired(t *testing.T) {
	err := ValidateAnswers(businessSchema, "business",
		map[string]string{"why_join": "   "},
		map[string]string{"resume": "uploads/abc.pdf"})
	if err == nil {
		t.Fatal("expected error for blank required field")
	}
	if !apperr.IsValidation(err) {
		t.Errorf("error = %T, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "why_join") {
		t.Errorf("error = %v, want to name the field", err)
	}
}

func TestValidateAnswers_WordLimit(t *testing.T) {
	err := ValidateAnswers(businessSchema, "business",
		map[string]string{"why_join": "one two three four five six"},
		map[string]string{"resume": "uploads/abc.pdf"})
	if err == nil {
		t.Fatal("expected error for exceeding word limit")
	}
	if !strings.Contains(err.Error(), "exceeds limit of 5") {
		t.Errorf("error = %v, want word-limit message", err)
	}
}

func TestValidateAnswers_MissingFile(t *testing.T) {
	err := ValidateAnswers(businessSchema, "business",
		map[string]string{"why_join": "hello"}, nil)
	if err == nil {
		t.Fatal("expected error for missing required file")
	}
	if !strings.Contains(err.Error(), "resume") {
		t.Errorf("error = %v, want to name the file field", err)
	}
}

func TestValidateAnswers_UnknownTrackIsEmptySchema(t *testing.T) {
	// An unconfigured track has no fields to validate; storage stays
	// schema-agnostic.
	if err := ValidateAnswers(businessSchema, "engineering", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewConfigProvider(t *testing.T) {
	p := NewConfigProvider(config.QuestionsConfig{
		Tracks: map[string][]config.QuestionField{
			"engineering": {{Key: "github", Type: "text", Required: true, WordLimit: 0}},
		},
	})
	fields := p.Fields("engineering")
	if len(fields) != 1 {
		t.Fatalf("fields = %d, want 1", len(fields))
	}
	if fields[0].Key != "github" || !fields[0].Required {
		t.Errorf("field = %+v, want required github", fields[0])
	}
}
