// Package qa defines the question/answer record schema that feeds the
// knowledge index, the conversation-turn model used by the ask flow, and the
// deterministic rendering of records into indexable documents.
package qa

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Unrestricted is the sentinel stored in place of an empty school or
// audience list, meaning the record applies to everyone.
const Unrestricted = "N/A"

// Languages accepted for a record. The knowledge base is primarily French.
const (
	LanguageFrench  = "Français"
	LanguageEnglish = "English"
)

// Schools lists the organizational-unit codes a record may target.
var Schools = []string{"IIM", "EXECUTIVE", "EMLV", "ESILV"}

// Audiences lists the user-role codes a record may target.
var Audiences = []string{"faculty-en", "anonymous", "staff", "student", "staff-en", "student-en", "faculty"}

// Record is the source of truth for one indexed Q&A item.
type Record struct {
	// ID is the stable unique identifier within the index. Re-inserting an
	// existing ID replaces the prior content.
	ID string

	// Title is the question text.
	Title string

	// Content is the answer text.
	Content string

	// Topic is an optional free-text classification tag.
	Topic string

	// Schools holds the organizational-unit codes this item applies to.
	// Empty means unrestricted and renders as the "N/A" sentinel.
	Schools []string

	// Audiences holds the user-role codes this item applies to.
	// Empty means unrestricted and renders as the "N/A" sentinel.
	Audiences []string

	// Language is the record language (LanguageFrench or LanguageEnglish).
	Language string

	// Date, PostType, and Status are optional provenance tags. They are
	// informational only and never influence ranking.
	Date     string
	PostType string
	Status   string
}

// NewRecord builds a Record for an online "add question" submission with a
// freshly generated UUID and today's date. Empty school or audience means
// the record is unrestricted; empty language defaults to French.
func NewRecord(title, content, topic, school, audience, language string) Record {
	rec := Record{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		Topic:    topic,
		Language: language,
		Date:     time.Now().Format("2006-01-02"),
	}
	if school != "" && school != Unrestricted {
		rec.Schools = []string{school}
	}
	if audience != "" && audience != Unrestricted {
		rec.Audiences = []string{audience}
	}
	if rec.Language == "" {
		rec.Language = LanguageFrench
	}
	return rec
}

// Validate checks required fields and enum membership. It is called once at
// the boundary; everything past it may assume a well-formed record.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("qa: title is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("qa: content is required")
	}
	if r.Language != "" && r.Language != LanguageFrench && r.Language != LanguageEnglish {
		return fmt.Errorf("qa: unknown language %q", r.Language)
	}
	for _, school := range r.Schools {
		if school == Unrestricted {
			continue
		}
		if !slices.Contains(Schools, school) {
			return fmt.Errorf("qa: unknown school %q", school)
		}
	}
	for _, audience := range r.Audiences {
		if audience == Unrestricted {
			continue
		}
		if !slices.Contains(Audiences, audience) {
			return fmt.Errorf("qa: unknown audience %q", audience)
		}
	}
	return nil
}

// joinOrNA renders a code list for the document header and metadata:
// comma-joined values, or the sentinel when the list is empty.
func joinOrNA(values []string) string {
	if len(values) == 0 {
		return Unrestricted
	}
	return strings.Join(values, ", ")
}
