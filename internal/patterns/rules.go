package patterns

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rebeccahihi/pseudo/internal/entity"
)

// Rule is a single declarative detector: a compiled pattern plus a label.
// Rules hold no state; matching is a pure function of the input text.
type Rule struct {
	Name       string
	Type       entity.Type
	Pattern    *regexp.Regexp
	Confidence float64

	// Filter optionally rejects a raw match. Used where a category needs
	// validation RE2 cannot express (no lookaround), e.g. excluding years
	// from the generic-number detector.
	Filter func(match string) bool
}

const monthsLong = `January|February|March|April|May|June|July|August|September|October|November|December`
const monthsAbbr = `Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec`

// corporateSuffixes covers the business-entity forms the organization
// detector recognizes, longest first so alternation prefers full suffixes.
var corporateSuffixes = []string{
	"Private Limited", "Pty Limited", "Incorporated", "Corporation",
	"Pte Ltd", "Pvt Ltd", "Pty Ltd", "Holdings", "Company", "Limited",
	"L\\.L\\.C\\.", "L\\.L\\.P\\.", "L\\.P\\.", "S\\.A\\.", "B\\.V\\.", "N\\.V\\.",
	"PLLC", "SARL", "GmbH", "Corp", "LLP", "LLC", "Inc", "Ltd", "PLC",
	"SAS", "Co", "LP", "AG",
}

// orgExclusionWords flag likely false positives in a candidate company name
// (everything before the suffix).
var orgExclusionWords = map[string]bool{
	"payable": true, "transfer": true, "wire": true, "to": true, "by": true,
	"from": true, "agreed": true, "sell": true, "having": true,
	"incorporated": true, "and": true, "with": true, "signed": true,
	"the": true, "this": true, "that": true, "said": true, "such": true,
	"other": true, "any": true, "all": true,
}

func suffixAlternation() string {
	return "(?:" + strings.Join(corporateSuffixes, "|") + ")"
}

// DefaultRules returns the built-in structured detectors. Each category is
// independent; overlapping matches across categories are expected and left
// to the overlap resolver.
func DefaultRules() []Rule {
	suffix := suffixAlternation()
	return []Rule{
		{
			Name:       "case_number",
			Type:       entity.TypeCaseNumber,
			Pattern:    regexp.MustCompile(`(?i)\b(?:case|suit|civil appeal|originating summons|claim|docket)\s+no\.?\s*[A-Z0-9][A-Z0-9/\-]*`),
			Confidence: 0.95,
		},
		{
			Name:       "court_reference",
			Type:       entity.TypeCaseNumber,
			Pattern:    regexp.MustCompile(`\b(?:HC|SC|CA|DC|MC)/[A-Z]{1,4}\s?\d+/\d{4}\b`),
			Confidence: 0.95,
		},
		{
			Name:       "neutral_citation",
			Type:       entity.TypeCitation,
			Pattern:    regexp.MustCompile(`\[\d{4}\]\s+[A-Z]{2,7}(?:\([A-Z]+\))?\s+\d+`),
			Confidence: 0.95,
		},
		{
			Name:       "reporter_citation",
			Type:       entity.TypeCitation,
			Pattern:    regexp.MustCompile(`\b\d+\s+(?:U\.S\.|F\.(?:2d|3d|4th)|S\.C\.R\.|SLR(?:\(R\))?|WLR|A\.C\.)\s+\d+\b`),
			Confidence: 0.9,
		},
		{
			Name:       "email",
			Type:       entity.TypeEmail,
			Pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			Confidence: 0.99,
		},
		{
			Name:       "phone_intl",
			Type:       entity.TypePhone,
			Pattern:    regexp.MustCompile(`\+\d{1,3}[ \-]?\d{3,4}[ \-]\d{3,4}(?:[ \-]\d{3,4})?`),
			Confidence: 0.9,
		},
		{
			Name:       "phone_us",
			Type:       entity.TypePhone,
			Pattern:    regexp.MustCompile(`\(\d{3}\)\s?\d{3}[\-.]\d{4}|\b\d{3}[\-.]\d{3}[\-.]\d{4}\b`),
			Confidence: 0.9,
		},
		{
			Name:       "money_code",
			Type:       entity.TypeMoney,
			Pattern:    regexp.MustCompile(`\b(?:USD|EUR|GBP|CAD|AUD|SGD|HKD|JPY|CNY|CHF|SEK|NOK|DKK)\s+\d[\d,]*(?:\.\d{2})?(?:\s+\([^)]{0,120}\))?`),
			Confidence: 0.95,
		},
		{
			Name:       "money_symbol",
			Type:       entity.TypeMoney,
			Pattern:    regexp.MustCompile(`[$€£¥₹₩₪₽¢]\s?\d[\d,]*(?:\.\d{2})?`),
			Confidence: 0.95,
		},
		{
			Name:       "money_written",
			Type:       entity.TypeMoney,
			Pattern:    regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d{2})?\s+(?:dollars?|euros?|pounds?|yen|yuan|francs?|krona|krone)\b`),
			Confidence: 0.85,
		},
		{
			Name:       "date_day_month_year",
			Type:       entity.TypeDate,
			Pattern:    regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:` + monthsLong + `)\s+\d{4}\b`),
			Confidence: 0.95,
		},
		{
			Name:       "date_month_day_year",
			Type:       entity.TypeDate,
			Pattern:    regexp.MustCompile(`(?i)\b(?:` + monthsLong + `)\s+\d{1,2},?\s+\d{4}\b`),
			Confidence: 0.95,
		},
		{
			Name:       "date_abbrev",
			Type:       entity.TypeDate,
			Pattern:    regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:` + monthsAbbr + `)\s+\d{4}\b`),
			Confidence: 0.9,
		},
		{
			Name:       "date_iso",
			Type:       entity.TypeDate,
			Pattern:    regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
			Confidence: 0.9,
		},
		{
			Name:       "date_slash",
			Type:       entity.TypeDate,
			Pattern:    regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
			Confidence: 0.8,
		},
		{
			Name:       "address_sg",
			Type:       entity.TypeAddress,
			Pattern:    regexp.MustCompile(`\b\d+\s+[A-Z][a-z]+\s+(?:Street|Road|Avenue|Drive|Lane|Boulevard|Quay),\s*Singapore\s+\d{6}\b`),
			Confidence: 0.95,
		},
		{
			Name:       "address_us",
			Type:       entity.TypeAddress,
			Pattern:    regexp.MustCompile(`\b\d+\s+[A-Z][a-z]+\s+(?:Street|Road|Avenue|Drive|Lane|Boulevard),\s*[A-Z][a-z]+,\s*[A-Z]{2}\s+\d{5}\b`),
			Confidence: 0.95,
		},
		{
			Name:       "address_street",
			Type:       entity.TypeAddress,
			Pattern:    regexp.MustCompile(`\b\d+\s+[A-Z][a-z]+\s+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Lane|Ln|Boulevard|Blvd|Walk|Close|Crescent|Place|Park|Gardens|Heights|Terrace|Rise|Hill|Grove|Way|Quay)\b`),
			Confidence: 0.8,
		},
		{
			Name:       "address_building",
			Type:       entity.TypeAddress,
			Pattern:    regexp.MustCompile(`\b(?:One|Two|Three|Four|Five|Six|Seven|Eight|Nine|Ten)\s+[A-Z][a-z]+\s+(?:Street|Road|Avenue|Quay|Boulevard|Plaza|Square|Tower|Building|Centre|Center)\b`),
			Confidence: 0.75,
		},
		{
			Name:       "organization",
			Type:       entity.TypeOrg,
			Pattern:    regexp.MustCompile(`\b[A-Z][A-Za-z]+(?:\s+[A-Z&][A-Za-z&]*){0,3}\s+` + suffix + `\b`),
			Confidence: 0.7,
			Filter:     validCompanyName,
		},
		{
			Name:       "percentage",
			Type:       entity.TypePercent,
			Pattern:    regexp.MustCompile(`\b\d+(?:\.\d+)?%`),
			Confidence: 0.9,
		},
		{
			Name:       "number_grouped",
			Type:       entity.TypeNumber,
			Pattern:    regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`),
			Confidence: 0.6,
		},
		{
			Name:       "number_plain",
			Type:       entity.TypeNumber,
			Pattern:    regexp.MustCompile(`\b\d{2,6}\b`),
			Confidence: 0.5,
			Filter:     validPlainNumber,
		},
	}
}

// validCompanyName rejects organization matches whose name part contains
// exclusion words or no substantial alphabetic content.
func validCompanyName(match string) bool {
	if len(match) <= 5 {
		return false
	}
	words := strings.Fields(match)
	if len(words) < 2 {
		return false
	}
	if orgExclusionWords[strings.ToLower(words[0])] {
		return false
	}
	// Everything except the trailing suffix words must be clean.
	for _, w := range words[:len(words)-1] {
		if orgExclusionWords[strings.ToLower(w)] {
			return false
		}
	}
	return true
}

// validPlainNumber drops year-like values and ID-sized numbers that the
// generic detector would otherwise swallow.
func validPlainNumber(match string) bool {
	n, err := strconv.Atoi(match)
	if err != nil {
		return false
	}
	if n >= 1900 && n <= 2099 {
		return false
	}
	return n <= 1_000_000
}
