package roles

import (
	"strings"
	"testing"

	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

func span(text, surface string) (int, int) {
	start := strings.Index(text, surface)
	return start, start + len(surface)
}

func TestClassify(t *testing.T) {
	c := New(60, logger.NewNop())

	tests := []struct {
		name    string
		text    string
		surface string
		want    entity.Role
	}{
		{
			"plaintiff after name",
			"John Smith, the Plaintiff, signed the agreement.",
			"John Smith",
			entity.RolePlaintiff,
		},
		{
			"defendant before name",
			"The Defendant, Mary Jones, denies the claim.",
			"Mary Jones",
			entity.RoleDefendant,
		},
		{
			"attorney phrase",
			"Ms Lee, counsel for the appellant, submitted that",
			"Ms Lee",
			entity.RoleAttorney,
		},
		{
			"judge title",
			"Before Justice Tan Wei the matter was heard.",
			"Tan Wei",
			entity.RoleJudge,
		},
		{
			"witness",
			"The witness, Robert Brown, testified on oath.",
			"Robert Brown",
			entity.RoleWitness,
		},
		{
			"no keyword in window",
			"Alice Wong attended the meeting at noon.",
			"Alice Wong",
			entity.RoleUnspecified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := span(tt.text, tt.surface)
			if got := c.Classify(tt.text, start, end); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.surface, got, tt.want)
			}
		})
	}
}

func TestClassifyNearestWins(t *testing.T) {
	c := New(200, logger.NewNop())

	// "witness" sits closer to the name than "plaintiff"; nearest keyword
	// wins regardless of priority.
	text := "The plaintiff called a witness, David Ng, to the stand."
	start, end := span(text, "David Ng")
	if got := c.Classify(text, start, end); got != entity.RoleWitness {
		t.Errorf("nearest keyword should win, got %q", got)
	}
}

func TestClassifyTieBreakPriority(t *testing.T) {
	c := New(60, logger.NewNop())

	// Both keywords at exactly equal distance: priority order prefers
	// Defendant over Plaintiff.
	text := "plaintiff x Anna Koh y defendant"
	start, end := span(text, "Anna Koh")
	distLeft := start - len("plaintiff")
	distRight := strings.Index(text, "defendant") - end
	if distLeft != distRight {
		t.Fatalf("test setup: distances differ (%d vs %d)", distLeft, distRight)
	}
	if got := c.Classify(text, start, end); got != entity.RoleDefendant {
		t.Errorf("tie should break to Defendant, got %q", got)
	}
}

func TestClassifyWindowBounds(t *testing.T) {
	c := New(10, logger.NewNop())

	// Keyword sits outside the 10-byte window and must not be seen.
	text := "plaintiff ................ John Smith"
	start, end := span(text, "John Smith")
	if got := c.Classify(text, start, end); got != entity.RoleUnspecified {
		t.Errorf("keyword outside window should be ignored, got %q", got)
	}
}

func TestAnnotateOnlyPersons(t *testing.T) {
	c := New(60, logger.NewNop())

	text := "The Plaintiff ABC Corp and John Smith appeared."
	entities := []entity.ResolvedEntity{
		{CandidateSpan: entity.CandidateSpan{Start: span2(text, "ABC Corp"), End: end2(text, "ABC Corp"), Type: entity.TypeOrg}},
		{CandidateSpan: entity.CandidateSpan{Start: span2(text, "John Smith"), End: end2(text, "John Smith"), Type: entity.TypePerson}},
	}

	c.Annotate(text, entities)

	if entities[0].Role != entity.RoleUnspecified {
		t.Errorf("organizations must not receive roles, got %q", entities[0].Role)
	}
	if entities[1].Role != entity.RolePlaintiff {
		t.Errorf("person should be Plaintiff, got %q", entities[1].Role)
	}
}

func span2(text, surface string) int { return strings.Index(text, surface) }
func end2(text, surface string) int  { return strings.Index(text, surface) + len(surface) }
