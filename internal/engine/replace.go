package engine

import (
	"strings"

	"github.com/rebeccahihi/pseudo/internal/entity"
)

// applyReplacements splices pseudonyms into text at the entities' original
// byte offsets. Entities must be non-overlapping and ordered by start; all
// offsets refer to the pre-substitution text, so replacements never cascade.
func applyReplacements(text string, entities []entity.ResolvedEntity, pseudonyms []string) string {
	var b strings.Builder
	b.Grow(len(text))

	cursor := 0
	for i, e := range entities {
		b.WriteString(text[cursor:e.Start])
		b.WriteString(pseudonyms[i])
		cursor = e.End
	}
	b.WriteString(text[cursor:])

	return b.String()
}
