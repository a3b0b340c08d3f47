// internal/httpserver/routes_daily.go
//
// HTTP routes for the "phrase of the day" mode.
// A daily round is started with POST /game/new {"category": "...", "daily": true};
// this file holds the claim bookkeeping the game handlers use and the read side under /daily:
//   - GET /daily/today?category=       → today's date key and whether this player has played it
//   - GET /daily/leaderboard?category= → top 20 results for today (or ?date=YYYY-MM-DD)
//
// Each player gets one recorded result per day and category (enforced by the DB).
// The row is claimed when the round starts and reads as a loss until the round
// ends; an abandoned daily round stays a loss. While the claimed round is in
// play its session refuses restart, reset and category changes.
// Phrase selection is deterministic from date + category + salt, where the date
// is the one the round was claimed on.

package httpserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/Chious/fm-hangman-game/internal/daily"
	"github.com/Chious/fm-hangman-game/internal/game"
	"github.com/Chious/fm-hangman-game/internal/stats"
	"github.com/Chious/fm-hangman-game/internal/store"
)

const leaderboardSize = 20

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Get("/today", s.handleDailyToday)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

// dailyCategory resolves ?category=, writing the error response when it is missing or unknown.
func (s *Server) dailyCategory(w http.ResponseWriter, r *http.Request) (string, bool) {
	asked := strings.TrimSpace(r.URL.Query().Get("category"))
	if asked == "" {
		writeError(w, http.StatusBadRequest, "category_required")
		return "", false
	}
	category, ok := s.cat.Resolve(asked)
	if !ok {
		writeEngineError(w, game.ErrInvalidCategory, s.cat, asked)
		return "", false
	}
	return category, true
}

// todayRes is returned by /daily/today.
type todayRes struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Played   bool   `json:"played"`
}

func (s *Server) handleDailyToday(w http.ResponseWriter, r *http.Request) {
	category, ok := s.dailyCategory(w, r)
	if !ok {
		return
	}
	player := s.ensurePlayerID(w, r)
	writeJSON(w, http.StatusOK, todayRes{
		Date:     daily.DateKey(s.now()),
		Category: category,
		Played:   s.dailyPlayed(r.Context(), player, category),
	})
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date     string        `json:"date"`
	Category string        `json:"category"`
	Top      []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	category, ok := s.dailyCategory(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.now())
	}
	rows, err := s.daily.Leaderboard(r.Context(), date, category, leaderboardSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Category: category, Top: rows})
}

// ----------------------------- daily rounds --------------------------------

// dailyTicket is the attempt a daily session is playing: when it was claimed
// and for which category. open stays true until the round ends.
type dailyTicket struct {
	mu       sync.Mutex
	at       time.Time
	category string
	open     bool
}

func (t *dailyTicket) start(at time.Time, category string) {
	t.mu.Lock()
	t.at, t.category, t.open = at, category, true
	t.mu.Unlock()
}

// startedAt is the daily picker's clock: replays keep the claimed day's phrase.
func (t *dailyTicket) startedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.at
}

func (t *dailyTicket) key() (date, category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return daily.DateKey(t.at), t.category
}

// settle closes an open ticket and returns what it was claimed for.
func (t *dailyTicket) settle() (date, category string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return "", "", false
	}
	t.open = false
	return daily.DateKey(t.at), t.category, true
}

// locks reports whether a round in phase p is the claimed attempt, still in play.
func (t *dailyTicket) locks(p game.Phase) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open && p != game.PhaseIdle && !p.Terminal()
}

func liveKey(player, date, category string) string {
	return player + "|" + date + "|" + category
}

// checkCategory rejects categories a daily round cannot be claimed for.
func (s *Server) checkCategory(category string) error {
	if _, ok := s.cat.Resolve(category); !ok {
		return game.ErrInvalidCategory
	}
	if len(s.cat.Phrases(category)) == 0 {
		return game.ErrEmptyCategory
	}
	return nil
}

// claimDaily books the player's attempt. Without a daily store every attempt is allowed.
func (s *Server) claimDaily(ctx context.Context, player, date, category string) (bool, error) {
	if s.daily == nil {
		return true, nil
	}
	return s.daily.Claim(ctx, player, date, category)
}

// trackDaily indexes a saved daily session so the player can get it back.
func (s *Server) trackDaily(sess *store.Session, t *dailyTicket) {
	s.tickets.Store(sess.ID, t)
	date, category := t.key()
	s.live.Store(liveKey(sess.PlayerID, date, category), sess.ID)
	sess.OnClose(func() {
		s.tickets.Delete(sess.ID)
		date, category := t.key()
		s.live.CompareAndDelete(liveKey(sess.PlayerID, date, category), sess.ID)
	})
}

func (s *Server) ticket(sessionID string) *dailyTicket {
	v, ok := s.tickets.Load(sessionID)
	if !ok {
		return nil
	}
	return v.(*dailyTicket)
}

// openDailySession finds the player's live session still playing the claimed
// attempt for date and category.
func (s *Server) openDailySession(ctx context.Context, player, date, category string) *store.Session {
	id, ok := s.live.Load(liveKey(player, date, category))
	if !ok {
		return nil
	}
	sess, err := s.sessions.Get(ctx, id.(string))
	if err != nil || sess.PlayerID != player {
		return nil
	}
	t := s.ticket(sess.ID)
	if t == nil || !t.locks(sess.Engine.Phase()) {
		return nil
	}
	if d, c := t.key(); d != date || c != category {
		return nil
	}
	return sess
}

// dailyLocked answers 409 when sess is still playing its claimed attempt.
func (s *Server) dailyLocked(w http.ResponseWriter, sess *store.Session) bool {
	if !sess.Daily {
		return false
	}
	if t := s.ticket(sess.ID); t != nil && t.locks(sess.Engine.Phase()) {
		writeError(w, http.StatusConflict, "daily_in_progress")
		return true
	}
	return false
}

// rebookDaily moves a daily session onto today's attempt for category,
// writing the error response when it cannot.
func (s *Server) rebookDaily(w http.ResponseWriter, r *http.Request, sess *store.Session, asked, category string) bool {
	if s.dailyLocked(w, sess) {
		return false
	}
	if err := s.checkCategory(category); err != nil {
		writeEngineError(w, err, s.cat, asked)
		return false
	}
	now := s.now()
	date := daily.DateKey(now)
	claimed, err := s.claimDaily(r.Context(), sess.PlayerID, date, category)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("claim daily")
		writeError(w, http.StatusInternalServerError, "db_error")
		return false
	}
	if !claimed {
		writeDailyPlayed(w, date, category)
		return false
	}
	if t := s.ticket(sess.ID); t != nil {
		oldDate, oldCategory := t.key()
		s.live.CompareAndDelete(liveKey(sess.PlayerID, oldDate, oldCategory), sess.ID)
		t.start(now, category)
		s.live.Store(liveKey(sess.PlayerID, date, category), sess.ID)
	}
	return true
}

// settleDaily writes the outcome of a session's claimed attempt. Replays of
// a settled attempt are not recorded.
func (s *Server) settleDaily(rd stats.Round, t *dailyTicket) {
	date, category, ok := t.settle()
	if !ok || s.daily == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.daily.Settle(ctx, daily.Result{
		PlayerID:  rd.PlayerID,
		Date:      date,
		Category:  category,
		Won:       rd.Outcome == game.PhaseWon,
		LivesLeft: rd.LivesLeft,
	})
	if err != nil {
		log.Warn().Err(err).Str("player", rd.PlayerID).Msg("settle daily result")
	}
}

func writeDailyPlayed(w http.ResponseWriter, date, category string) {
	writeJSON(w, http.StatusConflict, map[string]string{
		"error": "daily_played", "date": date, "category": category,
	})
}
