// internal/game/engine.go
//
// Core game engine for a single hangman session.
// Responsibilities:
//   - Start rounds from a Catalog (by category or at random) with a partial pre-reveal.
//   - Apply letter guesses: normalize, check, deduct lives, detect win/loss.
//   - Sequence the reveal delay between detecting the outcome and presenting it.
//   - Publish snapshots to subscribers and cues to the CueSink.
//
// Notes:
//   - Every round has a generation number; delayed callbacks carry the generation
//     they were scheduled for and do nothing once it is stale.
//   - State is mutated under e.mu. Cues and snapshots are queued while the lock is
//     held and delivered after it is released, in the order they were produced, so
//     subscribers may call back into the engine.
package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chious/fm-hangman-game/internal/clock"
)

const (
	DefaultRevealDelay   = 2000 * time.Millisecond
	DefaultFeedbackDelay = 600 * time.Millisecond

	minPreReveal = 3
)

var (
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyCategory   = errors.New("category has no phrases")
	ErrNoCategories    = errors.New("no categories available")
	ErrNoRound         = errors.New("no round to restart")
)

// RevealPolicy decides how many of unique distinct letters are handed to the
// player at round start. The engine clamps the result to [0, unique].
type RevealPolicy func(unique int, r *rand.Rand) int

// PhrasePicker returns the index of the phrase to play from phrases.
type PhrasePicker func(category string, phrases []string, r *rand.Rand) int

// DefaultReveal reveals max(3, floor(unique*p)) letters with p drawn from [0.20, 0.30).
func DefaultReveal(unique int, r *rand.Rand) int {
	p := 0.20 + r.Float64()*0.10
	n := int(math.Floor(float64(unique) * p))
	if n < minPreReveal {
		n = minPreReveal
	}
	if n > unique {
		n = unique
	}
	return n
}

// NoReveal starts every round with nothing revealed.
func NoReveal(int, *rand.Rand) int { return 0 }

// UniformPicker draws a phrase uniformly at random.
func UniformPicker(_ string, phrases []string, r *rand.Rand) int {
	return r.IntN(len(phrases))
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Scheduler     clock.Scheduler
	Cues          CueSink
	Rand          *rand.Rand
	Reveal        RevealPolicy
	Picker        PhrasePicker
	RevealDelay   time.Duration
	FeedbackDelay time.Duration
	Logger        *zerolog.Logger
}

// event is one queued notification: a cue, a state snapshot, or both.
type event struct {
	cue  Cue
	snap *Snapshot
}

// Engine owns the state of one single-player round.
type Engine struct {
	cat           Catalog
	sched         clock.Scheduler
	cues          CueSink
	rng           *rand.Rand
	reveal        RevealPolicy
	pick          PhrasePicker
	revealDelay   time.Duration
	feedbackDelay time.Duration
	log           zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	category string
	phrase   string
	guessed  map[string]struct{}
	lives    int
	phase    Phase
	pending  Phase
	last     *LastGuess

	feedbackSeq   uint64
	feedbackTimer clock.Timer
	revealTimer   clock.Timer

	subs     map[int]func(Snapshot)
	nextSub  int
	queue    []event
	draining bool
}

// New constructs an idle engine drawing phrases from cat.
func New(cat Catalog, opts Options) *Engine {
	e := &Engine{
		cat:           cat,
		sched:         opts.Scheduler,
		cues:          opts.Cues,
		rng:           opts.Rand,
		reveal:        opts.Reveal,
		pick:          opts.Picker,
		revealDelay:   opts.RevealDelay,
		feedbackDelay: opts.FeedbackDelay,
		log:           zerolog.Nop(),
		subs:          make(map[int]func(Snapshot)),
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	if e.sched == nil {
		e.sched = clock.Real()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.reveal == nil {
		e.reveal = DefaultReveal
	}
	if e.pick == nil {
		e.pick = UniformPicker
	}
	if e.revealDelay <= 0 {
		e.revealDelay = DefaultRevealDelay
	}
	if e.feedbackDelay <= 0 {
		e.feedbackDelay = DefaultFeedbackDelay
	}
	e.resetLocked()
	return e
}

// StartRound begins a new round in category, whatever the current phase.
// On error the engine is left untouched.
func (e *Engine) StartRound(category string) error {
	if !containsString(e.cat.Categories(), category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	phrases := e.cat.Phrases(category)
	if len(phrases) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyCategory, category)
	}

	e.mu.Lock()
	idx := e.pick(category, phrases, e.rng)
	if idx < 0 || idx >= len(phrases) {
		idx = 0
	}
	phrase := phrases[idx]

	e.stopTimersLocked()
	e.gen++
	e.lives = MaxLives
	e.guessed = make(map[string]struct{})
	e.last = nil
	e.pending = ""

	unique := uniqueLetters(phrase)
	n := e.reveal(len(unique), e.rng)
	if n < 0 {
		n = 0
	}
	if n > len(unique) {
		n = len(unique)
	}
	e.rng.Shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })
	for _, l := range unique[:n] {
		e.guessed[l] = struct{}{}
	}

	e.category = category
	e.phrase = phrase
	e.phase = PhasePlaying

	e.log.Debug().
		Uint64("round", e.gen).
		Str("category", category).
		Int("unique", len(unique)).
		Int("revealed", n).
		Msg("round started")

	e.enqueueStateLocked()
	e.mu.Unlock()
	e.drain()
	return nil
}

// StartRandomRound starts a round in a uniformly chosen category.
func (e *Engine) StartRandomRound() error {
	cats := e.cat.Categories()
	if len(cats) == 0 {
		return ErrNoCategories
	}
	e.mu.Lock()
	c := cats[e.rng.IntN(len(cats))]
	e.mu.Unlock()
	return e.StartRound(c)
}

// Restart plays again in the current category.
func (e *Engine) Restart() error {
	e.mu.Lock()
	c := e.category
	e.mu.Unlock()
	if c == "" {
		return ErrNoRound
	}
	return e.StartRound(c)
}

// Reset returns the engine to idle and cancels any pending transition.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stopTimersLocked()
	e.gen++
	e.resetLocked()
	e.enqueueStateLocked()
	e.mu.Unlock()
	e.drain()
}

// GuessLetter applies a guess. It reports false, changing nothing, when no
// round is being played, the input is not a single letter a–z, or the letter
// was already picked.
func (e *Engine) GuessLetter(letter string) (LastGuess, bool) {
	l, ok := normalizeLetter(letter)
	if !ok {
		return LastGuess{}, false
	}

	e.mu.Lock()
	if e.phase != PhasePlaying {
		e.mu.Unlock()
		return LastGuess{}, false
	}
	if _, dup := e.guessed[l]; dup {
		e.mu.Unlock()
		return LastGuess{}, false
	}

	e.guessed[l] = struct{}{}
	correct := strings.Contains(strings.ToLower(e.phrase), l)
	g := LastGuess{Letter: l, Correct: correct}
	e.last = &g
	e.feedbackSeq++
	if e.feedbackTimer != nil {
		e.feedbackTimer.Stop()
		e.feedbackTimer = nil
	}

	if !correct {
		e.queue = append(e.queue, event{cue: CueWrong})
		e.lives--
		if e.lives < 0 {
			e.lives = 0
		}
		if e.lives == 0 {
			for _, u := range uniqueLetters(e.phrase) {
				e.guessed[u] = struct{}{}
			}
			e.beginRevealLocked(PhaseLost)
			e.queue = append(e.queue, event{cue: CueDefeat})
		} else {
			e.scheduleFeedbackClearLocked()
		}
	} else {
		e.queue = append(e.queue, event{cue: CueCorrect})
		e.scheduleFeedbackClearLocked()
		if e.allFoundLocked() {
			e.beginRevealLocked(PhaseWon)
			e.queue = append(e.queue, event{cue: CueSuccess})
		}
	}

	e.enqueueStateLocked()
	e.mu.Unlock()
	e.drain()
	return g, true
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned func removes the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) (cancel func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Phase reports the current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Lives reports the remaining incorrect-guess budget.
func (e *Engine) Lives() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lives
}

// Health reports lives as a fraction of MaxLives, for a health bar.
func (e *Engine) Health() float64 {
	return float64(e.Lives()) / MaxLives
}

// Category reports the category of the current round ("" when idle).
func (e *Engine) Category() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.category
}

// Phrase returns the raw secret phrase. Display code must go through
// IsLetterVisible or Masked instead.
func (e *Engine) Phrase() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phrase
}

// LastGuess returns the transient feedback for the most recent guess.
func (e *Engine) LastGuess() (LastGuess, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return LastGuess{}, false
	}
	return *e.last, true
}

// IsLetterChosen reports whether letter has been picked or pre-revealed.
func (e *Engine) IsLetterChosen(letter string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.guessed[strings.ToLower(strings.TrimSpace(letter))]
	return ok
}

// IsLetterVisible reports whether ch should be shown in the answer grid.
// Spaces and punctuation are always visible.
func (e *Engine) IsLetterVisible(ch string) bool {
	l := strings.ToLower(ch)
	if len(l) != 1 || !isLetter(rune(l[0])) {
		return true
	}
	return e.IsLetterChosen(l)
}

// IsLetterInAnswer reports whether letter occurs in the phrase.
func (e *Engine) IsLetterInAnswer(letter string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := strings.ToLower(letter)
	return l != "" && strings.Contains(strings.ToLower(e.phrase), l)
}

// Masked returns the phrase with letters not yet visible replaced by '_'.
func (e *Engine) Masked() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return mask(e.phrase, e.guessed)
}

// ----------------------------- internals -----------------------------------

func (e *Engine) resetLocked() {
	e.category = ""
	e.phrase = ""
	e.guessed = make(map[string]struct{})
	e.lives = MaxLives
	e.phase = PhaseIdle
	e.pending = ""
	e.last = nil
}

func (e *Engine) stopTimersLocked() {
	if e.revealTimer != nil {
		e.revealTimer.Stop()
		e.revealTimer = nil
	}
	if e.feedbackTimer != nil {
		e.feedbackTimer.Stop()
		e.feedbackTimer = nil
	}
}

func (e *Engine) allFoundLocked() bool {
	for _, u := range uniqueLetters(e.phrase) {
		if _, ok := e.guessed[u]; !ok {
			return false
		}
	}
	return true
}

// beginRevealLocked enters Revealing and schedules the flip to outcome.
func (e *Engine) beginRevealLocked(outcome Phase) {
	e.phase = PhaseRevealing
	e.pending = outcome
	gen := e.gen
	e.revealTimer = e.sched.AfterFunc(e.revealDelay, func() { e.finishReveal(gen) })
}

func (e *Engine) finishReveal(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.phase != PhaseRevealing {
		e.mu.Unlock()
		return
	}
	e.phase = e.pending
	e.pending = ""
	e.revealTimer = nil

	e.log.Info().
		Uint64("round", gen).
		Str("category", e.category).
		Str("outcome", e.phase.String()).
		Int("lives", e.lives).
		Msg("round finished")

	e.enqueueStateLocked()
	e.mu.Unlock()
	e.drain()
}

// scheduleFeedbackClearLocked clears the current last guess after the
// feedback delay unless a newer guess replaced it first.
func (e *Engine) scheduleFeedbackClearLocked() {
	gen, seq := e.gen, e.feedbackSeq
	e.feedbackTimer = e.sched.AfterFunc(e.feedbackDelay, func() { e.clearFeedback(gen, seq) })
}

func (e *Engine) clearFeedback(gen, seq uint64) {
	e.mu.Lock()
	if gen != e.gen || seq != e.feedbackSeq || e.last == nil {
		e.mu.Unlock()
		return
	}
	e.last = nil
	e.feedbackTimer = nil
	e.enqueueStateLocked()
	e.mu.Unlock()
	e.drain()
}

func (e *Engine) snapshotLocked() Snapshot {
	guessed := make([]string, 0, len(e.guessed))
	for l := range e.guessed {
		guessed = append(guessed, l)
	}
	sort.Strings(guessed)

	s := Snapshot{
		Round:    e.gen,
		Category: e.category,
		Phase:    e.phase,
		Lives:    e.lives,
		MaxLives: MaxLives,
		Health:   float64(e.lives) / MaxLives,
		Masked:   mask(e.phrase, e.guessed),
		Guessed:  guessed,
	}
	if e.last != nil {
		g := *e.last
		s.LastGuess = &g
	}
	if e.phase == PhaseRevealing || e.phase.Terminal() {
		s.Answer = e.phrase
	}
	return s
}

func (e *Engine) enqueueStateLocked() {
	s := e.snapshotLocked()
	e.queue = append(e.queue, event{snap: &s})
}

// drain delivers queued events. Only one goroutine drains at a time; events
// queued by re-entrant calls are picked up by the loop already running.
func (e *Engine) drain() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	for len(e.queue) > 0 {
		ev := e.queue[0]
		e.queue = e.queue[1:]
		var subs []func(Snapshot)
		if ev.snap != nil {
			ids := make([]int, 0, len(e.subs))
			for id := range e.subs {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				subs = append(subs, e.subs[id])
			}
		}
		e.mu.Unlock()
		e.deliver(ev, subs)
		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}

func (e *Engine) deliver(ev event, subs []func(Snapshot)) {
	if ev.cue != "" && e.cues != nil {
		e.safely("cue", func() { e.cues.Notify(ev.cue) })
	}
	if ev.snap != nil {
		for _, fn := range subs {
			fn := fn
			e.safely("subscriber", func() { fn(*ev.snap) })
		}
	}
}

func (e *Engine) safely(what string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("source", what).Msg("recovered from notification panic")
		}
	}()
	f()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
