package index

import (
	"testing"

	"github.com/google/uuid"
)

// TestPointID verifies that record ids always map onto valid Qdrant point
// ids: UUIDs pass through untouched, anything else becomes a deterministic
// derived UUID.
func TestPointID(t *testing.T) {
	t.Parallel()

	existing := "c1a9e2d4-3f60-4b8a-9c51-7e2d8f0a1b23"
	if got := pointID(existing).GetUuid(); got != existing {
		t.Errorf("expected UUID id passed through, got %q", got)
	}

	// Numeric export ids are not UUIDs and must be mapped.
	mapped := pointID("4521").GetUuid()
	if _, err := uuid.Parse(mapped); err != nil {
		t.Fatalf("mapped id %q is not a valid UUID: %v", mapped, err)
	}
	if mapped == "4521" {
		t.Error("expected non-UUID id to be replaced")
	}

	// The mapping must be stable so re-upserting the same record replaces
	// the prior point instead of duplicating it.
	if again := pointID("4521").GetUuid(); again != mapped {
		t.Errorf("mapping not deterministic: %q vs %q", mapped, again)
	}
	if other := pointID("4522").GetUuid(); other == mapped {
		t.Error("distinct ids mapped to the same point id")
	}
}
