package game

import (
	"strings"
	"unicode"
)

// normalizeLetter trims and lowercases a single-letter guess.
// ok is false unless the result is exactly one ASCII letter a–z.
func normalizeLetter(s string) (letter string, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 1 || !isLetter(rune(s[0])) {
		return s, false
	}
	return s, true
}

// isLetter reports whether r is a lowercase ASCII letter.
func isLetter(r rune) bool { return r >= 'a' && r <= 'z' }

// IsGameKey reports whether key is a letter the keyboard may pick (A–Z, any case).
func IsGameKey(key string) bool {
	_, ok := normalizeLetter(key)
	return ok && len(key) == 1
}

// uniqueLetters returns the distinct letters of phrase, lowercased, in
// order of first appearance. Anything outside a–z is skipped.
func uniqueLetters(phrase string) []string {
	seen := make(map[rune]bool, 26)
	var out []string
	for _, r := range phrase {
		r = unicode.ToLower(r)
		if !isLetter(r) || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, string(r))
	}
	return out
}

// mask renders phrase with every letter not in guessed replaced by '_'.
func mask(phrase string, guessed map[string]struct{}) string {
	var b strings.Builder
	b.Grow(len(phrase))
	for _, r := range phrase {
		lr := unicode.ToLower(r)
		if !isLetter(lr) {
			b.WriteRune(r)
			continue
		}
		if _, ok := guessed[string(lr)]; ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
