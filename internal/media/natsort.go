package media

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"
)

// KeyToken is one run of a natural order key: either a digit run or a lowercased text run.
type KeyToken struct {
	Numeric bool
	// Digits holds the digit run with leading zeros removed ("" for zero).
	Digits string
	Text   string
}

// NaturalKey orders names so that embedded numbers compare by value.
type NaturalKey []KeyToken

// NaturalOrderKey splits the stem of name into digit and text runs.
func NaturalOrderKey(name string) NaturalKey {
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	var key NaturalKey
	start := 0
	for start < len(stem) {
		digit := isASCIIDigit(stem[start])
		end := start + 1
		for end < len(stem) && isASCIIDigit(stem[end]) == digit {
			end++
		}
		run := stem[start:end]
		if digit {
			key = append(key, KeyToken{Numeric: true, Digits: strings.TrimLeft(run, "0")})
		} else {
			key = append(key, KeyToken{Text: strings.ToLower(run)})
		}
		start = end
	}
	return key
}

// Compare returns -1, 0 or +1. Numeric tokens sort before text tokens at the
// same position, and a key that is a prefix of another sorts first.
func (k NaturalKey) Compare(other NaturalKey) int {
	for i := 0; i < len(k) && i < len(other); i++ {
		if c := k[i].compare(other[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(k), len(other))
}

func (t KeyToken) compare(o KeyToken) int {
	switch {
	case t.Numeric && !o.Numeric:
		return -1
	case !t.Numeric && o.Numeric:
		return 1
	case t.Numeric:
		// Values of arbitrary length: a longer trimmed run is a larger number.
		if c := cmp.Compare(len(t.Digits), len(o.Digits)); c != 0 {
			return c
		}
		return cmp.Compare(t.Digits, o.Digits)
	default:
		return cmp.Compare(t.Text, o.Text)
	}
}

// SortEntries orders entries by natural key, breaking ties on the lowercased
// and then the exact name so the order is total and reproducible.
func SortEntries(entries []MediaEntry) {
	type keyed struct {
		key   NaturalKey
		entry MediaEntry
	}
	items := make([]keyed, len(entries))
	for i, e := range entries {
		items[i] = keyed{key: NaturalOrderKey(e.Name()), entry: e}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		if c := a.key.Compare(b.key); c != 0 {
			return c
		}
		if c := cmp.Compare(strings.ToLower(a.entry.Name()), strings.ToLower(b.entry.Name())); c != 0 {
			return c
		}
		return cmp.Compare(a.entry.Name(), b.entry.Name())
	})

	for i := range items {
		entries[i] = items[i].entry
	}
}

// IsNumericStem reports whether the stem of name is made only of decimal digits,
// which means it could collide with a sequential output name.
func IsNumericStem(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return false
	}
	for i := 0; i < len(stem); i++ {
		if !isASCIIDigit(stem[i]) {
			return false
		}
	}
	return true
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
