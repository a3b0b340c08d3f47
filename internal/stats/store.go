package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chious/fm-hangman-game/internal/game"
)

const recordTimeout = 2 * time.Second

// Round is one finished round.
type Round struct {
	SessionID  string     `json:"sessionId"`
	PlayerID   string     `json:"playerId"`
	Round      uint64     `json:"round"`
	Category   string     `json:"category"`
	Phrase     string     `json:"phrase"`
	Outcome    game.Phase `json:"outcome"`
	LivesLeft  int        `json:"livesLeft"`
	Misses     int        `json:"misses"`
	Daily      bool       `json:"daily"`
	FinishedAt string     `json:"finishedAt,omitempty"`
}

// PlayerStats aggregates a player's finished rounds.
type PlayerStats struct {
	PlayerID   string `json:"playerId"`
	Played     int    `json:"played"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Streak     int    `json:"streak"`
	BestStreak int    `json:"bestStreak"`
}

// Store reads and writes round history.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStore(db *sql.DB, l zerolog.Logger) *Store { return &Store{db: db, log: l} }

// Record inserts r. Recording the same session round twice is a no-op.
func (s *Store) Record(ctx context.Context, r Round) error {
	if !r.Outcome.Terminal() {
		return fmt.Errorf("record round: outcome %q is not terminal", r.Outcome)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rounds
			(session_id, player_id, round, category, phrase, outcome, lives_left, misses, daily)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.PlayerID, r.Round, r.Category, r.Phrase, string(r.Outcome), r.LivesLeft, r.Misses, r.Daily,
	)
	return err
}

// PlayerStats computes totals and streaks for playerID.
func (s *Store) PlayerStats(ctx context.Context, playerID string) (PlayerStats, error) {
	out := PlayerStats{PlayerID: playerID}
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome FROM rounds WHERE player_id=? ORDER BY id ASC`, playerID)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		if err := rows.Scan(&outcome); err != nil {
			return out, err
		}
		out.Played++
		if game.Phase(outcome) == game.PhaseWon {
			out.Wins++
			out.Streak++
			if out.Streak > out.BestStreak {
				out.BestStreak = out.Streak
			}
		} else {
			out.Losses++
			out.Streak = 0
		}
	}
	return out, rows.Err()
}

// Recent lists the latest finished rounds of playerID, newest first.
func (s *Store) Recent(ctx context.Context, playerID string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, player_id, round, category, phrase, outcome, lives_left, misses, daily, finished_at
		FROM rounds WHERE player_id=? ORDER BY id DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Round{}
	for rows.Next() {
		var r Round
		var outcome string
		if err := rows.Scan(&r.SessionID, &r.PlayerID, &r.Round, &r.Category, &r.Phrase,
			&outcome, &r.LivesLeft, &r.Misses, &r.Daily, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Outcome = game.Phase(outcome)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Track records every round e finishes. onFinish, if set, runs after each
// recorded round. The returned func stops tracking.
func (s *Store) Track(e *game.Engine, sessionID, playerID string, daily bool, onFinish func(Round)) (cancel func()) {
	return e.Subscribe(func(snap game.Snapshot) {
		if !snap.Phase.Terminal() {
			return
		}
		r := Round{
			SessionID: sessionID,
			PlayerID:  playerID,
			Round:     snap.Round,
			Category:  snap.Category,
			Phrase:    snap.Answer,
			Outcome:   snap.Phase,
			LivesLeft: snap.Lives,
			Misses:    snap.MaxLives - snap.Lives,
			Daily:     daily,
		}
		ctx, done := context.WithTimeout(context.Background(), recordTimeout)
		defer done()
		if err := s.Record(ctx, r); err != nil {
			s.log.Warn().Err(err).Str("session", sessionID).Uint64("round", r.Round).Msg("record round")
			return
		}
		if onFinish != nil {
			onFinish(r)
		}
	})
}
