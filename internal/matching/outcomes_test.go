package matching

import "testing"

func TestAssignOutcomeStages(t *testing.T) {
	outcomes := []string{"Los Angeles Lakers", "Boston Celtics"}

	// Exact after normalization and affix stripping.
	if got := assignOutcome("los angeles lakers", outcomes, -1); got != 0 {
		t.Fatalf("exact stage got=%d", got)
	}
	// Bidirectional substring.
	if got := assignOutcome("Lakers", outcomes, -1); got != 0 {
		t.Fatalf("substring stage got=%d", got)
	}
	if got := assignOutcome("Angeles Lakers LA", outcomes, -1); got != 0 {
		t.Fatalf("two-word overlap stage got=%d", got)
	}
	if got := assignOutcome("Chicago Bulls", outcomes, -1); got != -1 {
		t.Fatalf("unrelated team got=%d", got)
	}
}

func TestAssignOutcomeExcludesClaimedIndex(t *testing.T) {
	outcomes := []string{"Boston Celtics", "Miami Heat"}
	if got := assignOutcome("Boston Celtics", outcomes, 0); got != -1 {
		t.Fatalf("excluded index must not be reused, got=%d", got)
	}
}

func TestAssignOutcomes(t *testing.T) {
	outcomes := []string{"Los Angeles Lakers", "Boston Celtics"}
	yes, no, ok := assignOutcomes("Celtics", "Lakers", outcomes)
	if !ok || yes != 1 || no != 0 {
		t.Fatalf("got=(%d,%d,%v)", yes, no, ok)
	}
	if _, _, ok := assignOutcomes("Celtics", "Celtics FC", outcomes); ok {
		t.Fatalf("both halves on one outcome must fail")
	}
	if _, _, ok := assignOutcomes("Heat", "Lakers", outcomes); ok {
		t.Fatalf("unassignable yes side must fail")
	}
}
