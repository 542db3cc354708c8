// Package entity defines the data model shared by the pseudonymization
// pipeline: candidate spans produced by the detectors, resolved entities
// selected for replacement, and the session mapping table.
package entity

import (
	"strings"
	"time"
)

// Type classifies what a detected span represents.
type Type string

// Supported entity types.
const (
	TypeCaseNumber Type = "CASE_NUMBER"
	TypeCitation   Type = "CITATION"
	TypePerson     Type = "PERSON"
	TypeOrg        Type = "ORG"
	TypeAddress    Type = "ADDRESS"
	TypeDate       Type = "DATE"
	TypeMoney      Type = "MONEY"
	TypeEmail      Type = "EMAIL"
	TypePhone      Type = "PHONE"
	TypePercent    Type = "PERCENT"
	TypeNumber     Type = "NUMBER"
)

// Role is the legal role attached to a person entity, or RoleUnspecified.
type Role string

// Roles recognized by the classifier, in fixed conflict-priority order
// (see RolePriority).
const (
	RoleUnspecified Role = ""
	RoleDefendant   Role = "Defendant"
	RolePlaintiff   Role = "Plaintiff"
	RoleAttorney    Role = "Attorney"
	RoleWitness     Role = "Witness"
	RoleJudge       Role = "Judge"
	RoleOther       Role = "Other"
)

// CandidateSpan is a detected span prior to overlap resolution. Offsets are
// half-open byte offsets into the UTF-8 input. Immutable once produced.
type CandidateSpan struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
	Type       Type    `json:"type"`
	Source     string  `json:"source"` // pattern id or model name
	Confidence float64 `json:"confidence"`
}

// ResolvedEntity is a CandidateSpan that survived overlap resolution.
type ResolvedEntity struct {
	CandidateSpan
	Role         Role   `json:"role,omitempty"`
	CanonicalKey string `json:"canonical_key"`
}

// MappingEntry records one original->pseudonym binding. Entries are keyed by
// (canonical key, type, role); they are append-only for the lifetime of a
// session except for the occurrence count.
type MappingEntry struct {
	CanonicalKey string `json:"canonical_key"`
	Type         Type   `json:"type"`
	Role         Role   `json:"role,omitempty"`
	Pseudonym    string `json:"pseudonym"`
	FirstSeen    int    `json:"first_seen"` // byte offset of first occurrence
	Occurrences  int    `json:"occurrences"`
}

// Metrics aggregates quality statistics for one processing run.
type Metrics struct {
	EntityCount      int           `json:"entity_count"`
	ReplacementCount int           `json:"replacement_count"`
	Elapsed          time.Duration `json:"elapsed"`
	MeanConfidence   float64       `json:"mean_confidence"`
}

// ProcessingResult is the output of one document run.
type ProcessingResult struct {
	Text    string         `json:"text"`
	Mapping []MappingEntry `json:"mapping"`
	Metrics Metrics        `json:"metrics"`
}

// typePriority fixes the overlap-resolution priority tiers. Lower wins.
// Structured legal identifiers > persons > organizations > addresses >
// dates > money > contact info > generic numbers. This table is part of the
// resolver contract; changing it changes which spans win conflicts.
var typePriority = map[Type]int{
	TypeCaseNumber: 0,
	TypeCitation:   0,
	TypePerson:     1,
	TypeOrg:        2,
	TypeAddress:    3,
	TypeDate:       4,
	TypeMoney:      5,
	TypeEmail:      6,
	TypePhone:      6,
	TypePercent:    7,
	TypeNumber:     7,
}

// Priority returns the resolution tier for t. Unknown types sort last.
func Priority(t Type) int {
	if p, ok := typePriority[t]; ok {
		return p
	}
	return len(typePriority)
}

// RolePriority returns the tie-break rank for a role when two role keywords
// sit at equal distance from an entity. Lower wins:
// Defendant > Plaintiff > Attorney > Witness > Judge > Other.
func RolePriority(r Role) int {
	switch r {
	case RoleDefendant:
		return 0
	case RolePlaintiff:
		return 1
	case RoleAttorney:
		return 2
	case RoleWitness:
		return 3
	case RoleJudge:
		return 4
	case RoleOther:
		return 5
	}
	return 6
}

// CanonicalKey normalizes a surface form for cross-reference matching:
// case-folded with runs of whitespace collapsed to single spaces.
func CanonicalKey(surface string) string {
	return strings.ToLower(strings.Join(strings.Fields(surface), " "))
}

// Overlaps reports whether the two half-open spans intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
