// internal/game/types.go
//
// Core type definitions for the hangman game engine.
// Defines:
//   - Phase: round lifecycle (idle → playing → revealing → won/lost).
//   - Cue: fire-and-forget feedback emitted while a guess is processed.
//   - Catalog / CueSink: collaborators injected into the Engine.
//   - Snapshot: read-only view of the round handed to subscribers.

package game

// MaxLives is the incorrect-guess budget of a fresh round.
const MaxLives = 6

// Phase is the lifecycle state of a round.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePlaying   Phase = "playing"
	PhaseRevealing Phase = "revealing"
	PhaseWon       Phase = "won"
	PhaseLost      Phase = "lost"
)

func (p Phase) String() string { return string(p) }

// Terminal reports whether the round is over and only a new round or a
// reset can move it on.
func (p Phase) Terminal() bool { return p == PhaseWon || p == PhaseLost }

// Cue is a feedback notification (sound, flash) emitted by the engine.
type Cue string

const (
	CueCorrect Cue = "correct"
	CueWrong   Cue = "wrong"
	CueDefeat  Cue = "defeat"
	CueSuccess Cue = "success"
)

// CueSink receives cues. Implementations must not block; the engine does
// not wait on them and recovers from panics they raise.
type CueSink interface {
	Notify(c Cue)
}

// CueFunc adapts a plain function to CueSink.
type CueFunc func(c Cue)

func (f CueFunc) Notify(c Cue) { f(c) }

// Catalog is the phrase lookup table the engine draws rounds from.
type Catalog interface {
	// Categories lists every known category name in a stable order.
	Categories() []string
	// Phrases lists the candidate phrases of category; empty if unknown.
	Phrases(category string) []string
}

// LastGuess is the outcome of the most recent accepted guess.
type LastGuess struct {
	Letter  string `json:"letter"`
	Correct bool   `json:"correct"`
}

// Snapshot is a copy of the observable round state.
type Snapshot struct {
	Round     uint64     `json:"round"`
	Category  string     `json:"category"`
	Phase     Phase      `json:"phase"`
	Lives     int        `json:"lives"`
	MaxLives  int        `json:"maxLives"`
	Health    float64    `json:"health"`
	Masked    string     `json:"masked"`
	Guessed   []string   `json:"guessed"`
	LastGuess *LastGuess `json:"lastGuess,omitempty"`
	// Answer is only filled once the full phrase is on display
	// (revealing, won or lost).
	Answer string `json:"answer,omitempty"`
}
