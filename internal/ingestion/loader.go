// Package ingestion loads QA record exports for bulk import into the
// catalog and the vector index.
package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

// rawRecord mirrors the export format of the school's knowledge base: field
// names are capitalized, some are French, and the school and audience lists
// arrive either as JSON arrays or pre-joined strings depending on the export.
type rawRecord struct {
	ID        flexibleID   `json:"id"`
	Title     string       `json:"Title"`
	Content   string       `json:"Content"`
	Date      string       `json:"Date"`
	PostType  string       `json:"Post Type"`
	Languages string       `json:"Langues"`
	Topic     string       `json:"Thématiques"`
	Audiences flexibleList `json:"Utilisateurs"`
	Schools   flexibleList `json:"Écoles"`
	Status    string       `json:"Status"`
}

// flexibleID accepts both string and numeric ids, since exports mix the two.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ingestion: id is neither string nor number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// flexibleList accepts both a JSON array of strings and a single string
// joined on ", ", since exports carry list fields in either shape.
type flexibleList []string

func (l *flexibleList) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*l = values
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ingestion: list field is neither array nor string: %w", err)
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = strings.Split(s, ", ")
	return nil
}

// LoadRecords reads a JSON export at path and converts every entry into a
// qa.Record. Entries without an id are assigned a fresh one; empty or
// sentinel list fields mean the record is unrestricted.
func LoadRecords(path string) ([]qa.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
	}

	var raws []rawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("ingestion: parse %s: %w", path, err)
	}

	recs := make([]qa.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := convert(raw)
		if err != nil {
			return nil, fmt.Errorf("ingestion: record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func convert(raw rawRecord) (qa.Record, error) {
	if raw.Title == "" {
		return qa.Record{}, fmt.Errorf("missing Title")
	}
	if raw.Content == "" {
		return qa.Record{}, fmt.Errorf("missing Content (title %q)", raw.Title)
	}

	id := string(raw.ID)
	if id == "" {
		id = uuid.NewString()
	}

	rec := qa.Record{
		ID:        id,
		Title:     raw.Title,
		Content:   raw.Content,
		Topic:     raw.Topic,
		Schools:   cleanList(raw.Schools),
		Audiences: cleanList(raw.Audiences),
		Language:  orDefault(raw.Languages, qa.LanguageFrench),
		Date:      orDefault(raw.Date, time.Now().Format("2006-01-02")),
		PostType:  raw.PostType,
		Status:    orDefault(raw.Status, "publish"),
	}
	return rec, nil
}

// cleanList drops empty entries and the unrestricted sentinel from an export
// list field. Both mean "applies to everyone", represented as nil.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || v == qa.Unrestricted {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
