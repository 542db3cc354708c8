package mapper

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// letterSeq converts a zero-based counter to the spreadsheet-style letter
// sequence A, B, ..., Z, AA, AB, ...
func letterSeq(n int) string {
	var b []byte
	for {
		b = append([]byte{byte('A' + n%26)}, b...)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return string(b)
}

// randomDigits replaces every digit in surface with a random digit, keeping
// all other characters in place. The first digit of a multi-digit run stays
// non-zero so lengths read naturally.
func randomDigits(rng *rand.Rand, surface string) string {
	var b strings.Builder
	b.Grow(len(surface))
	prevDigit := false
	for _, r := range surface {
		if r >= '0' && r <= '9' {
			if !prevDigit {
				b.WriteByte(byte('1' + rng.Intn(9)))
			} else {
				b.WriteByte(byte('0' + rng.Intn(10)))
			}
			prevDigit = true
			continue
		}
		prevDigit = false
		b.WriteRune(r)
	}
	return b.String()
}

// addressCode derives a stable six-digit code from the canonical key and the
// session seed. The salt parameter bumps the hash on the rare collision.
func addressCode(seed int64, key string, salt int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%s", seed, salt, key)))
	var n uint32
	for _, c := range sum[:4] {
		n = n<<8 | uint32(c)
	}
	return fmt.Sprintf("%06d", n%1000000)
}

// namesLikelySame reports whether two canonical person keys plausibly refer
// to the same person: an exact match, first and last name matching with
// middle names or initials ignored, or one name being a strict token subset
// of the other (a bare surname after a full name). Shared surnames across
// distinct people are a known false positive of this heuristic.
func namesLikelySame(a, b string) bool {
	if a == b {
		return true
	}
	af, bf := strings.Fields(a), strings.Fields(b)
	if len(af) == 0 || len(bf) == 0 {
		return false
	}

	if len(af) >= 2 && len(bf) >= 2 &&
		af[0] == bf[0] && af[len(af)-1] == bf[len(bf)-1] {
		return true
	}

	short, long := af, bf
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return false
	}
	tokens := make(map[string]bool, len(long))
	for _, t := range long {
		tokens[t] = true
	}
	for _, t := range short {
		if !tokens[t] {
			return false
		}
	}
	return true
}

// dateLayouts lists the surface forms the date shifter can parse and
// re-emit. Ordered: more specific layouts first so "15 January 2024" is not
// half-consumed by a shorter one.
var dateLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// shiftDate parses the surface as a date, applies the day offset, and
// re-renders it in the same layout. ok is false when no layout matches.
func shiftDate(surface string, offsetDays int) (string, bool) {
	trimmed := strings.TrimSpace(surface)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return t.AddDate(0, 0, offsetDays).Format(layout), true
	}
	return "", false
}
