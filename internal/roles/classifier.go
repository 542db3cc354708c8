// Package roles assigns legal roles to person entities from surrounding
// context. The output is a heuristic tag, not a correctness guarantee: the
// nearest role keyword inside a bounded window wins, with a fixed priority
// order breaking distance ties.
package roles

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

// roleKeyword binds one vocabulary item to the role it indicates.
type roleKeyword struct {
	word    string
	role    entity.Role
	pattern *regexp.Regexp
}

// Vocabulary drawn from litigation, contract and professional role terms
// seen in legal documents. Multi-word phrases are matched as written.
var roleVocabulary = []struct {
	word string
	role entity.Role
}{
	{"defendant", entity.RoleDefendant},
	{"respondent", entity.RoleDefendant},
	{"accused", entity.RoleDefendant},
	{"appellee", entity.RoleDefendant},
	{"plaintiff", entity.RolePlaintiff},
	{"claimant", entity.RolePlaintiff},
	{"complainant", entity.RolePlaintiff},
	{"petitioner", entity.RolePlaintiff},
	{"appellant", entity.RolePlaintiff},
	{"counsel for", entity.RoleAttorney},
	{"on behalf of", entity.RoleAttorney},
	{"attorney", entity.RoleAttorney},
	{"counsel", entity.RoleAttorney},
	{"lawyer", entity.RoleAttorney},
	{"advocate", entity.RoleAttorney},
	{"solicitor", entity.RoleAttorney},
	{"barrister", entity.RoleAttorney},
	{"witness", entity.RoleWitness},
	{"deponent", entity.RoleWitness},
	{"judge", entity.RoleJudge},
	{"justice", entity.RoleJudge},
	{"magistrate", entity.RoleJudge},
	{"arbitrator", entity.RoleJudge},
	{"trustee", entity.RoleOther},
	{"executor", entity.RoleOther},
	{"guardian", entity.RoleOther},
	{"director", entity.RoleOther},
	{"partner", entity.RoleOther},
	{"guarantor", entity.RoleOther},
}

// Classifier scans a bounded context window around person entities for
// role-indicating vocabulary.
type Classifier struct {
	window   int
	keywords []roleKeyword
	logger   *logger.Logger
}

// New builds a classifier with the given window radius in bytes.
func New(window int, log *logger.Logger) *Classifier {
	keywords := make([]roleKeyword, 0, len(roleVocabulary))
	for _, v := range roleVocabulary {
		keywords = append(keywords, roleKeyword{
			word:    v.word,
			role:    v.role,
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(v.word) + `\b`),
		})
	}
	return &Classifier{window: window, keywords: keywords, logger: log}
}

// Annotate sets the Role on every person entity in place. Entities must be
// ordered by start offset. Non-person entities are left untouched.
func (c *Classifier) Annotate(text string, entities []entity.ResolvedEntity) {
	for i := range entities {
		if entities[i].Type != entity.TypePerson {
			continue
		}
		role := c.Classify(text, entities[i].Start, entities[i].End)
		entities[i].Role = role
		if role != entity.RoleUnspecified {
			c.logger.Debug("Role classified",
				zap.String("role", string(role)),
				zap.Int("offset", entities[i].Start),
			)
		}
	}
}

// Classify inspects the window around [start, end) and returns the nearest
// role keyword's role, or RoleUnspecified when none is found. Distance ties
// fall back to the fixed priority order
// Defendant > Plaintiff > Attorney > Witness > Judge > Other.
func (c *Classifier) Classify(text string, start, end int) entity.Role {
	winStart := start - c.window
	if winStart < 0 {
		winStart = 0
	}
	winEnd := end + c.window
	if winEnd > len(text) {
		winEnd = len(text)
	}
	window := text[winStart:winEnd]

	best := entity.RoleUnspecified
	bestDist := -1

	for _, kw := range c.keywords {
		for _, loc := range kw.pattern.FindAllStringIndex(window, -1) {
			kwStart := winStart + loc[0]
			kwEnd := winStart + loc[1]
			dist := distance(start, end, kwStart, kwEnd)

			switch {
			case bestDist < 0 || dist < bestDist:
				best, bestDist = kw.role, dist
			case dist == bestDist && entity.RolePriority(kw.role) < entity.RolePriority(best):
				best = kw.role
			}
		}
	}

	return best
}

// distance is the byte gap between the entity span and a keyword span,
// zero when they touch or overlap.
func distance(start, end, kwStart, kwEnd int) int {
	if kwEnd <= start {
		return start - kwEnd
	}
	if kwStart >= end {
		return kwStart - end
	}
	return 0
}
