// Package question exposes the application question schema to the core.
// The schema is externally supplied configuration: the core reads it to
// validate submissions and never mutates it.
package question

import (
	"fmt"
	"strings"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/config"
)

// Field is one application form field.
type Field struct {
	Key       string
	Type      string // text, textarea, file, select
	Required  bool
	WordLimit int // 0 = unlimited
}

// Provider supplies the ordered field list for a track.
type Provider interface {
	Fields(track string) []Field
}

// ConfigProvider reads question sets from the loaded YAML config.
type ConfigProvider struct {
	tracks map[string][]Field
}

// NewConfigProvider builds a ConfigProvider from config.
func NewConfigProvider(qc config.QuestionsConfig) *ConfigProvider {
	tracks := make(map[string][]Field, len(qc.Tracks))
	for track, fields := range qc.Tracks {
		out := make([]Field, len(fields))
		for i, f := range fields {
			out[i] = Field{Key: f.Key, Type: f.Type, Required: f.Required, WordLimit: f.WordLimit}
		}
		tracks[track] = out
	}
	return &ConfigProvider{tracks: tracks}
}

// Fields returns the field list for a track, or nil if none is configured.
func (p *ConfigProvider) Fields(track string) []Field {
	return p.tracks[track]
}

// Static is a fixed-schema Provider, used in tests and for deployments with
// a single shared question set.
type Static map[string][]Field

func (s Static) Fields(track string) []Field { return s[track] }

// ValidateAnswers checks answers and files against the track's schema:
// required fields must be present and non-empty, and word-limited fields
// must not exceed their limit. File fields are satisfied by a file
// reference rather than an answer.
func ValidateAnswers(p Provider, track string, answers map[string]string, files map[string]string) error {
	for _, f := range p.Fields(track) {
		if f.Type == "file" {
			if f.Required && files[f.Key] == "" {
				return apperr.Validation(f.Key, "required file is missing")
			}
			continue
		}
		val := answers[f.Key]
		if f.Required && strings.TrimSpace(val) == "" {
			return apperr.Validation(f.Key, "required field is missing")
		}
		if f.WordLimit > 0 {
			if n := len(strings.Fields(val)); n > f.WordLimit {
				return apperr.Validation(f.Key, fmt.Sprintf("%d words exceeds limit of %d", n, f.WordLimit))
			}
		}
	}
	return nil
}
