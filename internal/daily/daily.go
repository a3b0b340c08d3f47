package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Chious/fm-hangman-game/internal/game"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PhraseIndex returns a deterministic index for a date and category using
// HMAC(salt, YYYY-MM-DD|category) % n.
func PhraseIndex(date time.Time, salt, category string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.ToLower(category)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for the modulus
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// Picker returns a game.PhrasePicker that always plays the phrase of the day.
// now is read at pick time so a long-lived session rolls over at midnight UTC.
func Picker(salt string, now func() time.Time) game.PhrasePicker {
	if now == nil {
		now = time.Now
	}
	return func(category string, phrases []string, _ *rand.Rand) int {
		return PhraseIndex(now(), salt, category, len(phrases))
	}
}
