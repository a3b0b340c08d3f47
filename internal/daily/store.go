package daily

import (
	"context"
	"database/sql"
)

// Result is one player's outcome on the phrase of the day for a category.
type Result struct {
	PlayerID  string `json:"playerId"`
	Date      string `json:"date"`
	Category  string `json:"category"`
	Won       bool   `json:"won"`
	LivesLeft int    `json:"livesLeft"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, playerID, date, category string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_results WHERE player_id=? AND date=? AND category=?`,
		playerID, date, category,
	).Scan(&cnt)
	return cnt > 0, err
}

// Claim books today's attempt for a player and category before the round is
// played. The row reads as a loss until Settle records the outcome. It reports
// false when the player already holds a row for that date and category.
func (s *Store) Claim(ctx context.Context, playerID, date, category string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(player_id, date, category, won, lives_left)
		VALUES(?,?,?,0,0)`, playerID, date, category,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Settle writes the outcome of a claimed attempt. Only the first outcome
// counts; later calls for the same row are ignored.
func (s *Store) Settle(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_results SET won=?, lives_left=?, finished=1
		WHERE player_id=? AND date=? AND category=? AND finished=0`,
		r.Won, r.LivesLeft, r.PlayerID, r.Date, r.Category,
	)
	return err
}

type LBRow struct {
	PlayerID  string `json:"playerId"`
	Won       bool   `json:"won"`
	LivesLeft int    `json:"livesLeft"`
	Finished  bool   `json:"finished"` // false: abandoned or still in play
}

// Leaderboard ranks the day's results: wins first, then most lives left, then earliest.
func (s *Store) Leaderboard(ctx context.Context, date, category string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, won, lives_left, finished
		FROM daily_results
		WHERE date=? AND category=?
		ORDER BY won DESC, lives_left DESC, created_at ASC
		LIMIT ?`, date, category, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.PlayerID, &r.Won, &r.LivesLeft, &r.Finished); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
