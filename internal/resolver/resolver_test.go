package resolver

import (
	"testing"

	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

func cand(start, end int, text string, typ entity.Type, source string) entity.CandidateSpan {
	return entity.CandidateSpan{Start: start, End: end, Text: text, Type: typ, Source: source, Confidence: 0.9}
}

func TestResolveEmpty(t *testing.T) {
	r := New(logger.NewNop())
	if got := r.Resolve(nil); got != nil {
		t.Errorf("expected nil for no candidates, got %+v", got)
	}
}

func TestResolveNonOverlapping(t *testing.T) {
	r := New(logger.NewNop())

	out := r.Resolve([]entity.CandidateSpan{
		cand(20, 28, "ABC Corp", entity.TypeOrg, "organization"),
		cand(0, 10, "John Smith", entity.TypePerson, "model"),
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(out))
	}
	if out[0].Start != 0 || out[1].Start != 20 {
		t.Errorf("output not in document order: %+v", out)
	}
	if out[0].CanonicalKey != "john smith" {
		t.Errorf("canonical key = %q, want %q", out[0].CanonicalKey, "john smith")
	}
}

func TestResolvePriorityWins(t *testing.T) {
	r := New(logger.NewNop())

	// A case number overlapping a generic number: the case number's tier
	// wins even though the number span is inside it.
	out := r.Resolve([]entity.CandidateSpan{
		cand(9, 13, "1234", entity.TypeNumber, "number_plain"),
		cand(0, 18, "Case No. 1234/2024", entity.TypeCaseNumber, "case_number"),
	})

	if len(out) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(out))
	}
	if out[0].Type != entity.TypeCaseNumber {
		t.Errorf("winner = %s, want CASE_NUMBER", out[0].Type)
	}
}

func TestResolveLongerSpanWinsAtEqualPriority(t *testing.T) {
	r := New(logger.NewNop())

	// Model and pattern both claim person tier 1; the longer span wins.
	out := r.Resolve([]entity.CandidateSpan{
		cand(0, 4, "John", entity.TypePerson, "model"),
		cand(0, 10, "John Smith", entity.TypePerson, "model"),
	})

	if len(out) != 1 || out[0].Text != "John Smith" {
		t.Errorf("expected the longer span to win, got %+v", out)
	}
}

func TestResolveEqualPriorityAndLength(t *testing.T) {
	r := New(logger.NewNop())

	out := r.Resolve([]entity.CandidateSpan{
		cand(5, 15, "later span", entity.TypePerson, "model"),
		cand(0, 10, "early span", entity.TypePerson, "model"),
	})

	if len(out) != 1 || out[0].Start != 0 {
		t.Errorf("expected the earlier span to win, got %+v", out)
	}
}

func TestResolveTransitiveConflict(t *testing.T) {
	r := New(logger.NewNop())

	// B overlaps both A and C. The sweep commits A, rejects the
	// lower-priority B against it, then accepts C because C starts after A's
	// end; the rejected B is never retried against C.
	out := r.Resolve([]entity.CandidateSpan{
		cand(0, 10, "A span ten", entity.TypePerson, "model"),
		cand(8, 20, "B overlaps both", entity.TypeOrg, "organization"),
		cand(15, 22, "C small", entity.TypeDate, "date_iso"),
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %+v", out)
	}
	if out[0].Type != entity.TypePerson || out[1].Type != entity.TypeDate {
		t.Errorf("wrong survivors: %+v", out)
	}
}

func TestResolveDisplacementChain(t *testing.T) {
	r := New(logger.NewNop())

	// Pairwise-overlapping chain with priority rising left to right: the
	// organization displaces the committed date, then the person displaces
	// the organization. Only the person survives; the displaced date is not
	// resurrected even though nothing in the final set overlaps it.
	out := r.Resolve([]entity.CandidateSpan{
		cand(0, 10, "15 Jan 24-", entity.TypeDate, "date_long"),
		cand(8, 20, "-ABC Corp...", entity.TypeOrg, "organization"),
		cand(18, 30, "..John Smith", entity.TypePerson, "model"),
	})

	if len(out) != 1 {
		t.Fatalf("expected a single survivor, got %+v", out)
	}
	if out[0].Type != entity.TypePerson || out[0].Start != 18 || out[0].End != 30 {
		t.Errorf("survivor = %+v, want the person span [18,30)", out[0])
	}
}

func TestResolveDisplacementKeepsEarlierCommits(t *testing.T) {
	r := New(logger.NewNop())

	// Displacement only ever replaces the last committed span. The earlier,
	// non-conflicting case number stays committed while the person displaces
	// the date it overlaps.
	out := r.Resolve([]entity.CandidateSpan{
		cand(0, 8, "77/2023.", entity.TypeCaseNumber, "case_number"),
		cand(10, 20, "15 Jan 24.", entity.TypeDate, "date_long"),
		cand(15, 26, "John Smith.", entity.TypePerson, "model"),
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %+v", out)
	}
	if out[0].Type != entity.TypeCaseNumber {
		t.Errorf("case number lost: %+v", out)
	}
	if out[1].Type != entity.TypePerson || out[1].Start != 15 {
		t.Errorf("person should displace the date: %+v", out)
	}
}

func TestResolveOutputNeverOverlaps(t *testing.T) {
	r := New(logger.NewNop())

	out := r.Resolve([]entity.CandidateSpan{
		cand(0, 12, "x", entity.TypeOrg, "organization"),
		cand(5, 9, "y", entity.TypePerson, "model"),
		cand(10, 18, "z", entity.TypeDate, "date_iso"),
		cand(3, 20, "w", entity.TypeNumber, "number_plain"),
	})

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if entity.Overlaps(out[i].Start, out[i].End, out[j].Start, out[j].End) {
				t.Errorf("output spans overlap: %+v and %+v", out[i], out[j])
			}
		}
	}
}
