package qa

import (
	"strings"
	"testing"
)

// TestNewRecord_Defaults verifies that an online submission gets a generated
// id, today's date, and the unrestricted defaults for empty optional fields.
func TestNewRecord_Defaults(t *testing.T) {
	t.Parallel()

	rec := NewRecord("Comment obtenir un certificat ?", "Via l'espace étudiant.", "", "", "", "")

	if rec.ID == "" {
		t.Error("expected a generated id")
	}
	if rec.Language != LanguageFrench {
		t.Errorf("expected default language %q, got %q", LanguageFrench, rec.Language)
	}
	if rec.Topic != "" {
		t.Errorf("expected empty topic, got %q", rec.Topic)
	}
	if len(rec.Schools) != 0 {
		t.Errorf("expected no school restriction, got %v", rec.Schools)
	}
	if len(rec.Audiences) != 0 {
		t.Errorf("expected no audience restriction, got %v", rec.Audiences)
	}
	if rec.Date == "" || len(rec.Date) != len("2006-01-02") {
		t.Errorf("expected ISO date, got %q", rec.Date)
	}
}

// TestNewRecord_UniqueIDs verifies that successive submissions never share
// an id.
func TestNewRecord_UniqueIDs(t *testing.T) {
	t.Parallel()

	a := NewRecord("q", "a", "", "", "", "")
	b := NewRecord("q", "a", "", "", "", "")
	if a.ID == b.ID {
		t.Errorf("expected distinct ids, both were %q", a.ID)
	}
}

// TestValidate covers required fields and enum membership.
func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		rec     Record
		wantErr string
	}{
		{
			name: "valid full record",
			rec: Record{
				Title:     "Quand ont lieu les rattrapages ?",
				Content:   "En juin.",
				Schools:   []string{"EMLV", "ESILV"},
				Audiences: []string{"student"},
				Language:  LanguageFrench,
			},
		},
		{
			name:    "missing title",
			rec:     Record{Content: "réponse"},
			wantErr: "title",
		},
		{
			name:    "missing content",
			rec:     Record{Title: "question"},
			wantErr: "content",
		},
		{
			name:    "blank title",
			rec:     Record{Title: "   ", Content: "réponse"},
			wantErr: "title",
		},
		{
			name:    "unknown school",
			rec:     Record{Title: "q", Content: "a", Schools: []string{"HARVARD"}},
			wantErr: "school",
		},
		{
			name:    "unknown audience",
			rec:     Record{Title: "q", Content: "a", Audiences: []string{"alien"}},
			wantErr: "audience",
		},
		{
			name:    "unknown language",
			rec:     Record{Title: "q", Content: "a", Language: "Deutsch"},
			wantErr: "language",
		},
		{
			name: "sentinel passes enum checks",
			rec:  Record{Title: "q", Content: "a", Schools: []string{Unrestricted}, Audiences: []string{Unrestricted}},
		},
		{
			name: "english language",
			rec:  Record{Title: "q", Content: "a", Language: LanguageEnglish},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.rec.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid record, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error mentioning %q, got %q", tc.wantErr, err)
			}
		})
	}
}
