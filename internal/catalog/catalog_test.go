package catalog

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestSaveAndAll verifies the round trip of a fully populated record.
func TestSaveAndAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	rec := qa.Record{
		ID:        "rec-1",
		Title:     "Quand ont lieu les rattrapages ?",
		Content:   "En juin.",
		Topic:     "Examens",
		Schools:   []string{"EMLV", "ESILV"},
		Audiences: []string{"student"},
		Language:  qa.LanguageFrench,
		Date:      "2024-03-01",
		PostType:  "faq",
		Status:    "publish",
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recs, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	got := recs[0]
	if got.ID != rec.ID || got.Title != rec.Title || got.Content != rec.Content {
		t.Errorf("core fields mismatch: %+v", got)
	}
	if !slices.Equal(got.Schools, rec.Schools) {
		t.Errorf("schools mismatch: got %v, want %v", got.Schools, rec.Schools)
	}
	if !slices.Equal(got.Audiences, rec.Audiences) {
		t.Errorf("audiences mismatch: got %v, want %v", got.Audiences, rec.Audiences)
	}
	if got.Language != rec.Language || got.Date != rec.Date || got.PostType != rec.PostType || got.Status != rec.Status {
		t.Errorf("provenance fields mismatch: %+v", got)
	}
}

// TestSave_ReplacesSameID verifies upsert semantics on conflicting ids.
func TestSave_ReplacesSameID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	first := qa.Record{ID: "rec-1", Title: "v1", Content: "a", Topic: "t", Language: qa.LanguageFrench, Date: "2024-01-01"}
	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := first
	second.Title = "v2"
	if err := s.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	recs, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record after replace, got %d", len(recs))
	}
	if recs[0].Title != "v2" {
		t.Errorf("expected replaced title v2, got %q", recs[0].Title)
	}
}

// TestUnrestrictedRoundTrip verifies the sentinel handling: empty lists come
// back empty, not as a literal "N/A" element.
func TestUnrestrictedRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	rec := qa.Record{ID: "rec-1", Title: "q", Content: "a", Topic: "t", Language: qa.LanguageFrench, Date: "2024-01-01"}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}

	recs, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs[0].Schools) != 0 {
		t.Errorf("expected unrestricted schools to round-trip empty, got %v", recs[0].Schools)
	}
	if len(recs[0].Audiences) != 0 {
		t.Errorf("expected unrestricted audiences to round-trip empty, got %v", recs[0].Audiences)
	}
}

// TestRecent verifies newest-first ordering and the limit.
func TestRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		rec := qa.Record{ID: id, Title: "t-" + id, Content: "c", Topic: "t", Language: qa.LanguageFrench, Date: "2024-01-01"}
		if err := s.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Same created_at second is possible; the id tie-break keeps insertion
	// order stable, so the latest insert comes first.
	if recs[0].ID != "c" {
		t.Errorf("expected newest record first, got %q", recs[0].ID)
	}
}

// TestOpen_PersistsAcrossReopen verifies durability with an on-disk file.
func TestOpen_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := qa.Record{ID: "rec-1", Title: "q", Content: "a", Topic: "t", Language: qa.LanguageFrench, Date: "2024-01-01"}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recs, err := reopened.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-1" {
		t.Fatalf("expected persisted record after reopen, got %+v", recs)
	}
}
