package game

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/Chious/fm-hangman-game/internal/clock"
)

// staticCatalog is an in-memory Catalog keyed by category.
type staticCatalog map[string][]string

func (c staticCatalog) Categories() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c staticCatalog) Phrases(category string) []string { return c[category] }

// cueLog records cues in order.
type cueLog struct{ cues []Cue }

func (l *cueLog) Notify(c Cue) { l.cues = append(l.cues, c) }

func (l *cueLog) count(c Cue) int {
	n := 0
	for _, x := range l.cues {
		if x == c {
			n++
		}
	}
	return n
}

func newTestEngine(cat Catalog, reveal RevealPolicy) (*Engine, *clock.Manual, *cueLog) {
	m := clock.NewManual()
	cues := &cueLog{}
	e := New(cat, Options{
		Scheduler: m,
		Cues:      cues,
		Rand:      rand.New(rand.NewPCG(1, 2)),
		Reveal:    reveal,
	})
	return e, m, cues
}

func guessAll(e *Engine, letters ...string) {
	for _, l := range letters {
		e.GuessLetter(l)
	}
}

// TestScenarioWin walks the "cat" round from first guess to Won.
func TestScenarioWin(t *testing.T) {
	e, m, cues := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	if err := e.StartRound("animals"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	if g, ok := e.GuessLetter("c"); !ok || !g.Correct {
		t.Fatalf("expected c to be accepted as correct, got %+v ok=%v", g, ok)
	}
	if e.Lives() != 6 {
		t.Fatalf("expected 6 lives after correct guess, got %d", e.Lives())
	}
	if g, ok := e.GuessLetter("z"); !ok || g.Correct {
		t.Fatalf("expected z to be accepted as wrong, got %+v ok=%v", g, ok)
	}
	if e.Lives() != 5 {
		t.Fatalf("expected 5 lives after wrong guess, got %d", e.Lives())
	}
	guessAll(e, "a", "t")

	if e.Phase() != PhaseRevealing {
		t.Fatalf("expected revealing, got %s", e.Phase())
	}
	m.Advance(DefaultRevealDelay - time.Millisecond)
	if e.Phase() != PhaseRevealing {
		t.Fatalf("expected revealing before the delay elapsed, got %s", e.Phase())
	}
	m.Advance(time.Millisecond)
	if e.Phase() != PhaseWon {
		t.Fatalf("expected won, got %s", e.Phase())
	}
	if e.Lives() != 5 {
		t.Fatalf("expected lives to stay 5, got %d", e.Lives())
	}
	want := []Cue{CueCorrect, CueWrong, CueCorrect, CueCorrect, CueSuccess}
	if len(cues.cues) != len(want) {
		t.Fatalf("expected cues %v, got %v", want, cues.cues)
	}
	for i := range want {
		if cues.cues[i] != want[i] {
			t.Fatalf("expected cues %v, got %v", want, cues.cues)
		}
	}
}

// TestScenarioLoss runs six misses on "ok".
func TestScenarioLoss(t *testing.T) {
	e, m, cues := newTestEngine(staticCatalog{"words": {"ok"}}, NoReveal)
	if err := e.StartRound("words"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	for i, l := range []string{"q", "w", "x", "y", "z", "j"} {
		e.GuessLetter(l)
		if got, want := e.Lives(), 5-i; got != want {
			t.Fatalf("after %d misses expected %d lives, got %d", i+1, want, got)
		}
	}
	if e.Phase() != PhaseRevealing {
		t.Fatalf("expected revealing, got %s", e.Phase())
	}
	if !e.IsLetterChosen("o") || !e.IsLetterChosen("k") {
		t.Fatalf("expected full reveal before the delay")
	}
	if s := e.Snapshot(); s.Masked != "ok" || s.Answer != "ok" {
		t.Fatalf("expected answer shown while revealing, got masked=%q answer=%q", s.Masked, s.Answer)
	}
	if cues.count(CueWrong) != 6 || cues.count(CueDefeat) != 1 {
		t.Fatalf("expected 6 wrong + 1 defeat cue, got %v", cues.cues)
	}
	if last := cues.cues[len(cues.cues)-1]; last != CueDefeat {
		t.Fatalf("expected defeat after the final wrong cue, got %v", cues.cues)
	}

	m.Advance(DefaultRevealDelay)
	if e.Phase() != PhaseLost {
		t.Fatalf("expected lost, got %s", e.Phase())
	}
	if e.Lives() != 0 {
		t.Fatalf("expected 0 lives, got %d", e.Lives())
	}
}

func TestUnknownCategoryLeavesStateAlone(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	err := e.StartRound("unknown-category")
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if e.Phase() != PhaseIdle {
		t.Fatalf("expected idle, got %s", e.Phase())
	}

	if err := e.StartRound("animals"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	e.GuessLetter("z")
	before := e.Snapshot()
	if err := e.StartRound("nope"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	after := e.Snapshot()
	if after.Phase != before.Phase || after.Lives != before.Lives || after.Round != before.Round {
		t.Fatalf("failed start mutated state: before=%+v after=%+v", before, after)
	}
}

func TestEmptyCategory(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"empty": {}}, NoReveal)
	if err := e.StartRound("empty"); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if e.Phase() != PhaseIdle {
		t.Fatalf("expected idle, got %s", e.Phase())
	}
}

func TestStartRandomRound(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{}, NoReveal)
	if err := e.StartRandomRound(); !errors.Is(err, ErrNoCategories) {
		t.Fatalf("expected ErrNoCategories, got %v", err)
	}

	cat := staticCatalog{"animals": {"cat"}, "sports": {"golf"}}
	e, _, _ = newTestEngine(cat, NoReveal)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		if err := e.StartRandomRound(); err != nil {
			t.Fatalf("StartRandomRound: %v", err)
		}
		seen[e.Category()] = true
		if e.Phase() != PhasePlaying {
			t.Fatalf("expected playing, got %s", e.Phase())
		}
	}
	if !seen["animals"] || !seen["sports"] {
		t.Fatalf("expected both categories to come up in 50 draws, got %v", seen)
	}
}

func TestDuplicateGuessIsNoop(t *testing.T) {
	e, _, cues := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	_ = e.StartRound("animals")
	e.GuessLetter("z")
	e.GuessLetter("c")
	before := e.Snapshot()
	nCues := len(cues.cues)

	for _, l := range []string{"z", "Z", " c ", "C"} {
		if _, ok := e.GuessLetter(l); ok {
			t.Fatalf("expected repeat guess %q to be ignored", l)
		}
	}
	after := e.Snapshot()
	if after.Lives != before.Lives || after.Phase != before.Phase || len(after.Guessed) != len(before.Guessed) {
		t.Fatalf("repeat guesses changed state: before=%+v after=%+v", before, after)
	}
	if len(cues.cues) != nCues {
		t.Fatalf("repeat guesses emitted cues: %v", cues.cues[nCues:])
	}
}

func TestInvalidInputIgnored(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	_ = e.StartRound("animals")
	for _, in := range []string{"", " ", "ab", "1", "-", "é"} {
		if _, ok := e.GuessLetter(in); ok {
			t.Fatalf("expected %q to be ignored", in)
		}
	}
	if e.Lives() != MaxLives {
		t.Fatalf("invalid input cost lives: %d", e.Lives())
	}
	if g, ok := e.GuessLetter(" A "); !ok || g.Letter != "a" || !g.Correct {
		t.Fatalf("expected padded upper-case A to normalize to a, got %+v ok=%v", g, ok)
	}
}

func TestGuessIgnoredOutsidePlaying(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	if _, ok := e.GuessLetter("c"); ok {
		t.Fatalf("expected guess while idle to be ignored")
	}
	_ = e.StartRound("animals")
	guessAll(e, "c", "a", "t")
	if e.Phase() != PhaseRevealing {
		t.Fatalf("expected revealing, got %s", e.Phase())
	}
	if _, ok := e.GuessLetter("z"); ok {
		t.Fatalf("expected guess while revealing to be ignored")
	}
	if e.Lives() != MaxLives {
		t.Fatalf("expected lives untouched, got %d", e.Lives())
	}
}

func TestLivesMonotonic(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"c": {"Hello, World"}}, NoReveal)
	_ = e.StartRound("c")
	prev := e.Lives()
	misses := 0
	for _, l := range "abcdefghijklmnopqrstuvwxyz" {
		if _, ok := e.GuessLetter(string(l)); ok && !e.IsLetterInAnswer(string(l)) {
			misses++
		}
		cur := e.Lives()
		if cur > prev || cur < 0 {
			t.Fatalf("lives went from %d to %d", prev, cur)
		}
		if e.Phase() == PhasePlaying && cur != MaxLives-misses {
			t.Fatalf("expected %d lives after %d misses, got %d", MaxLives-misses, misses, cur)
		}
		prev = cur
	}
}

func TestDefaultRevealBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	for _, tc := range []struct{ unique, lo, hi int }{
		{0, 0, 0},
		{2, 2, 2},
		{3, 3, 3},
		{10, 3, 3},
		{26, 5, 7},
	} {
		for i := 0; i < 200; i++ {
			n := DefaultReveal(tc.unique, r)
			if n < tc.lo || n > tc.hi {
				t.Fatalf("unique=%d: reveal %d outside [%d,%d]", tc.unique, n, tc.lo, tc.hi)
			}
		}
	}
}

func TestPreRevealCountsAndCostsNothing(t *testing.T) {
	phrase := "The Quick Brown Fox Jumps Over The Lazy Dog"
	unique := len(uniqueLetters(phrase))
	if unique != 26 {
		t.Fatalf("expected 26 unique letters, got %d", unique)
	}
	for seed := uint64(0); seed < 30; seed++ {
		e := New(staticCatalog{"p": {phrase}}, Options{
			Scheduler: clock.NewManual(),
			Rand:      rand.New(rand.NewPCG(seed, seed+1)),
		})
		if err := e.StartRound("p"); err != nil {
			t.Fatalf("StartRound: %v", err)
		}
		s := e.Snapshot()
		if n := len(s.Guessed); n < 5 || n > 7 {
			t.Fatalf("seed %d: expected 5..7 pre-revealed letters, got %d", seed, n)
		}
		if s.Lives != MaxLives {
			t.Fatalf("seed %d: pre-reveal cost lives: %d", seed, s.Lives)
		}
		for _, l := range s.Guessed {
			if !e.IsLetterInAnswer(l) {
				t.Fatalf("seed %d: pre-revealed %q not in phrase", seed, l)
			}
		}
	}
}

func TestPreRevealSmallPhrase(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"w": {"ok"}}, nil)
	_ = e.StartRound("w")
	if got := len(e.Snapshot().Guessed); got != 2 {
		t.Fatalf("expected the clamp to reveal both letters, got %d", got)
	}
	if e.Phase() != PhasePlaying {
		t.Fatalf("expected playing, got %s", e.Phase())
	}
}

func TestSeededRoundsAreReproducible(t *testing.T) {
	cat := staticCatalog{"p": {"alpha beta", "gamma delta", "epsilon zeta"}}
	run := func() Snapshot {
		e := New(cat, Options{Scheduler: clock.NewManual(), Rand: rand.New(rand.NewPCG(42, 43))})
		_ = e.StartRound("p")
		return e.Snapshot()
	}
	a, b := run(), run()
	if a.Masked != b.Masked {
		t.Fatalf("expected identical rounds for identical seeds: %q vs %q", a.Masked, b.Masked)
	}
}

func TestStartRoundResetsState(t *testing.T) {
	e, m, _ := newTestEngine(staticCatalog{"w": {"ok"}}, NoReveal)
	_ = e.StartRound("w")
	guessAll(e, "q", "w", "x", "y", "z", "j")
	m.Advance(DefaultRevealDelay)
	if e.Phase() != PhaseLost {
		t.Fatalf("expected lost, got %s", e.Phase())
	}
	if _, ok := e.LastGuess(); !ok {
		t.Fatalf("expected the losing guess to stay as last guess")
	}

	if err := e.StartRound("w"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if e.Lives() != MaxLives || e.Phase() != PhasePlaying {
		t.Fatalf("expected fresh round, got lives=%d phase=%s", e.Lives(), e.Phase())
	}
	if _, ok := e.LastGuess(); ok {
		t.Fatalf("expected last guess cleared")
	}
	if len(e.Snapshot().Guessed) != 0 {
		t.Fatalf("expected no guessed letters with NoReveal")
	}
}

// TestStaleRevealTimerIgnored starts a new round while the previous one is
// still revealing; the old timer must not flip the new round.
func TestStaleRevealTimerIgnored(t *testing.T) {
	e, m, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	_ = e.StartRound("animals")
	guessAll(e, "c", "a", "t")
	if e.Phase() != PhaseRevealing {
		t.Fatalf("expected revealing, got %s", e.Phase())
	}
	m.Advance(time.Second)
	_ = e.StartRound("animals")
	m.Advance(5 * time.Second)
	if e.Phase() != PhasePlaying {
		t.Fatalf("stale reveal timer changed phase to %s", e.Phase())
	}
}

func TestResetCancelsPendingReveal(t *testing.T) {
	e, m, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	_ = e.StartRound("animals")
	guessAll(e, "c", "a", "t")
	e.Reset()
	if m.Pending() != 0 {
		t.Fatalf("expected reset to stop timers, %d pending", m.Pending())
	}
	m.Advance(5 * time.Second)
	s := e.Snapshot()
	if s.Phase != PhaseIdle || s.Category != "" || s.Masked != "" || s.Lives != MaxLives {
		t.Fatalf("expected idle defaults, got %+v", s)
	}
}

func TestLastGuessClearsAfterFeedbackDelay(t *testing.T) {
	e, m, _ := newTestEngine(staticCatalog{"animals": {"catalog"}}, NoReveal)
	_ = e.StartRound("animals")

	e.GuessLetter("c")
	m.Advance(400 * time.Millisecond)
	e.GuessLetter("z")
	m.Advance(300 * time.Millisecond)
	g, ok := e.LastGuess()
	if !ok || g.Letter != "z" || g.Correct {
		t.Fatalf("expected z to still be shown, got %+v ok=%v", g, ok)
	}
	m.Advance(300 * time.Millisecond)
	if _, ok := e.LastGuess(); ok {
		t.Fatalf("expected last guess cleared after the feedback delay")
	}
}

func TestRestart(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	if err := e.Restart(); !errors.Is(err, ErrNoRound) {
		t.Fatalf("expected ErrNoRound, got %v", err)
	}
	_ = e.StartRound("animals")
	e.GuessLetter("z")
	round := e.Snapshot().Round
	if err := e.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	s := e.Snapshot()
	if s.Round == round || s.Category != "animals" || s.Lives != MaxLives {
		t.Fatalf("expected a fresh round in the same category, got %+v", s)
	}
}

func TestVisibilityQueries(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"m": {"Spider-Man 2"}}, NoReveal)
	_ = e.StartRound("m")
	for _, ch := range []string{" ", "-", "2"} {
		if !e.IsLetterVisible(ch) {
			t.Fatalf("expected %q always visible", ch)
		}
	}
	if e.IsLetterVisible("S") {
		t.Fatalf("expected S hidden before guessing")
	}
	e.GuessLetter("s")
	if !e.IsLetterVisible("S") || !e.IsLetterChosen("S") {
		t.Fatalf("expected S visible after guessing s")
	}
	if !e.IsLetterInAnswer("M") || e.IsLetterInAnswer("q") {
		t.Fatalf("IsLetterInAnswer mismatch")
	}
	if got := e.Masked(); got != "S_____-___ 2" {
		t.Fatalf("unexpected mask %q", got)
	}
	if s := e.Snapshot(); s.Answer != "" {
		t.Fatalf("answer leaked while playing: %q", s.Answer)
	}
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	e, m, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	var phases []Phase
	cancel := e.Subscribe(func(s Snapshot) { phases = append(phases, s.Phase) })

	_ = e.StartRound("animals")
	guessAll(e, "c", "a", "t")
	m.Advance(DefaultRevealDelay)
	cancel()
	e.Reset()

	want := []Phase{PhasePlaying, PhasePlaying, PhasePlaying, PhaseRevealing}
	if len(phases) < len(want)+1 {
		t.Fatalf("expected at least %d snapshots, got %v", len(want)+1, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("expected %v prefix, got %v", want, phases)
		}
	}
	if phases[len(phases)-1] != PhaseWon {
		t.Fatalf("expected last delivered snapshot to be won, got %v", phases)
	}
}

func TestSubscriberMayReenterEngine(t *testing.T) {
	e, _, _ := newTestEngine(staticCatalog{"animals": {"cat"}}, NoReveal)
	fired := false
	e.Subscribe(func(s Snapshot) {
		if s.Phase == PhasePlaying && !fired {
			fired = true
			e.GuessLetter("c")
		}
	})
	_ = e.StartRound("animals")
	if !e.IsLetterChosen("c") {
		t.Fatalf("expected re-entrant guess to be applied")
	}
}

func TestPanickingCueSinkIsContained(t *testing.T) {
	e := New(staticCatalog{"animals": {"cat"}}, Options{
		Scheduler: clock.NewManual(),
		Reveal:    NoReveal,
		Cues:      CueFunc(func(Cue) { panic("speaker on fire") }),
	})
	_ = e.StartRound("animals")
	if _, ok := e.GuessLetter("c"); !ok {
		t.Fatalf("expected guess to be applied")
	}
	if e.Lives() != MaxLives {
		t.Fatalf("unexpected lives %d", e.Lives())
	}
}

func TestIsGameKey(t *testing.T) {
	for _, k := range []string{"a", "Z", "m"} {
		if !IsGameKey(k) {
			t.Fatalf("expected %q to be a game key", k)
		}
	}
	for _, k := range []string{"", "Escape", "1", " a", "ab"} {
		if IsGameKey(k) {
			t.Fatalf("expected %q not to be a game key", k)
		}
	}
}
