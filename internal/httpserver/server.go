// internal/httpserver/server.go
//
// HTTP server wiring for the hangman backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/categories", "/debug/catalog".
//   - POST /game/new creates a session: one engine per player, addressed by a signed token.
//   - Session-bound endpoints: /game/state, /game/guess, /game/restart, /game/reset,
//     /game/category and the /game/ws live stream.
//   - Stats endpoints keyed by the anonymous player cookie: /stats/me, /stats/recent.
//   - Daily phrase endpoints: mounted under /daily (see routes_daily.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Finished rounds are recorded by a stats tracker attached to each engine;
//     handlers never write history themselves.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/Chious/fm-hangman-game/internal/catalog"
	"github.com/Chious/fm-hangman-game/internal/clock"
	"github.com/Chious/fm-hangman-game/internal/config"
	"github.com/Chious/fm-hangman-game/internal/cue"
	"github.com/Chious/fm-hangman-game/internal/daily"
	"github.com/Chious/fm-hangman-game/internal/game"
	"github.com/Chious/fm-hangman-game/internal/stats"
	"github.com/Chious/fm-hangman-game/internal/store"
)

// Deps are the collaborators a Server needs. Stats and Daily may be nil,
// in which case history is not recorded and /daily is not mounted.
// Daily results are settled through the stats tracker, so Daily needs Stats.
type Deps struct {
	Catalog  *catalog.Catalog
	Sessions store.Store
	Stats    *stats.Store
	Daily    *daily.Store

	// Scheduler drives engine timers; real timers when nil.
	Scheduler clock.Scheduler
	// Reveal overrides the engine's pre-reveal policy.
	Reveal game.RevealPolicy
	// Now is the wall clock used for the daily date; time.Now when nil.
	Now func() time.Time
}

// Server bundles router, session store, and persistence.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	cat      *catalog.Catalog
	sessions store.Store
	stats    *stats.Store
	daily    *daily.Store
	sched    clock.Scheduler
	reveal   game.RevealPolicy
	now      func() time.Time
	upgrader websocket.Upgrader

	tickets sync.Map // session ID → *dailyTicket
	live    sync.Map // liveKey(player, date, category) → session ID
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, d Deps) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		cat:      d.Catalog,
		sessions: d.Sessions,
		stats:    d.Stats,
		daily:    d.Daily,
		sched:    d.Scheduler,
		reveal:   d.Reveal,
		now:      d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)               // add X-Request-ID
	s.r.Use(chimw.RealIP)                  // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)               // recover from panics
	s.r.Use(hlog.NewHandler(log.Logger))   // request-scoped logger
	s.r.Use(hlog.AccessHandler(accessLog)) // one debug line per request
	s.r.Use(corsFor(cfg.ClientOrigin))     // credentials-friendly CORS

	// The live stream outlives the request timeout, so it sits outside the group.
	s.r.With(s.requireSession).Get("/game/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			endpoints := []string{"/health", "/categories", "POST /game/new", "POST /game/guess",
				"GET /game/state", "GET /game/ws", "/stats/*", "/daily/*"}
			writeJSON(w, http.StatusOK, map[string]any{"service": "hangman-go", "endpoints": endpoints})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.sessions.Len()})
		})
		r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"categories": s.cat.Categories()})
		})
		r.Get("/debug/catalog", func(w http.ResponseWriter, r *http.Request) {
			c, p := s.cat.Stats()
			writeJSON(w, http.StatusOK, map[string]int{"categories": c, "phrases": p})
		})

		// --- game ---
		r.Post("/game/new", s.handleNewGame)
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/game/state", s.handleState)
			r.Post("/game/guess", s.handleGuess)
			r.Post("/game/restart", s.handleRestart)
			r.Post("/game/reset", s.handleReset)
			r.Post("/game/category", s.handleCategory)
		})

		// --- stats ---
		r.Get("/stats/me", s.handleStatsMe)
		r.Get("/stats/recent", s.handleStatsRecent)

		if s.daily != nil {
			s.mountDaily(r)
		}

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
		})
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFor enables credentialed CORS for a single origin.
func corsFor(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("took", d).
		Str("request_id", chimw.GetReqID(r.Context())).
		Msg("request")
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Category string `json:"category"` // empty: random category
	Daily    bool   `json:"daily"`    // play the phrase of the day
}
type newGameRes struct {
	GameID  string        `json:"gameId"`
	Token   string        `json:"token"`
	State   game.Snapshot `json:"state"`
	Resumed bool          `json:"resumed,omitempty"` // daily round already in play
}

// handleNewGame creates a session with a fresh engine and starts its first round.
// A daily request books the day's attempt first; asking again while that
// attempt is still in play hands back the same session.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	player := s.ensurePlayerID(w, r)
	category := s.canonical(req.Category)

	var ticket *dailyTicket
	if req.Daily {
		if category == "" {
			writeError(w, http.StatusBadRequest, "category_required")
			return
		}
		if err := s.checkCategory(category); err != nil {
			writeEngineError(w, err, s.cat, req.Category)
			return
		}
		now := s.now()
		date := daily.DateKey(now)
		claimed, err := s.claimDaily(r.Context(), player, date, category)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("claim daily")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !claimed {
			if sess := s.openDailySession(r.Context(), player, date, category); sess != nil {
				hlog.FromRequest(r).Info().Str("session", sess.ID).Msg("daily game resumed")
				s.issueSession(w, sess, true)
				return
			}
			writeDailyPlayed(w, date, category)
			return
		}
		ticket = &dailyTicket{}
		ticket.start(now, category)
	}

	sess := s.newSession(player, ticket)
	var err error
	if category == "" {
		err = sess.Engine.StartRandomRound()
	} else {
		err = sess.Engine.StartRound(category)
	}
	if err != nil {
		writeEngineError(w, err, s.cat, req.Category)
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	if ticket != nil {
		s.trackDaily(sess, ticket)
	}

	hlog.FromRequest(r).Info().
		Str("session", sess.ID).
		Str("category", sess.Engine.Category()).
		Bool("daily", req.Daily).
		Msg("game created")
	s.issueSession(w, sess, false)
}

// issueSession signs a token for sess and replies with its state.
func (s *Server) issueSession(w http.ResponseWriter, sess *store.Session, resumed bool) {
	tok, exp, err := s.signToken(sess.ID, sess.PlayerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setSessionCookie(w, tok, exp)
	writeJSON(w, http.StatusOK, newGameRes{
		GameID:  sess.ID,
		Token:   tok,
		State:   sess.Engine.Snapshot(),
		Resumed: resumed,
	})
}

// newSession builds an engine for player and wires its cues and history.
// A non-nil ticket makes it a daily session: the engine plays the phrase of
// the ticket's day and finished rounds settle the ticket.
func (s *Server) newSession(player string, ticket *dailyTicket) *store.Session {
	hub := cue.NewHub()
	l := log.With().Str("player", player).Logger()
	opts := game.Options{
		Scheduler:     s.sched,
		Cues:          cue.Multi(hub, cue.Log(l)),
		Reveal:        s.reveal,
		RevealDelay:   s.cfg.RevealDelay,
		FeedbackDelay: s.cfg.FeedbackDelay,
		Logger:        &l,
	}
	dailyMode := ticket != nil
	var onFinish func(stats.Round)
	if dailyMode {
		opts.Picker = daily.Picker(s.cfg.DailySalt, ticket.startedAt)
		onFinish = func(rd stats.Round) { s.settleDaily(rd, ticket) }
	}
	sess := store.NewSession(player, dailyMode, game.New(s.cat, opts), hub)

	if s.stats != nil {
		stop := s.stats.Track(sess.Engine, sess.ID, player, dailyMode, onFinish)
		sess.OnClose(stop)
	}
	return sess
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Engine.Snapshot())
}

// guessReq/Res payloads for POST /game/guess.
type guessReq struct {
	Letter string `json:"letter"`
}
type guessRes struct {
	Accepted  bool            `json:"accepted"`
	LastGuess *game.LastGuess `json:"lastGuess,omitempty"`
	State     game.Snapshot   `json:"state"`
}

// handleGuess applies one letter. A rejected guess is not an HTTP error:
// the engine simply ignores it and the response says so.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	e := sessionFrom(r).Engine
	res := guessRes{}
	if g, ok := e.GuessLetter(req.Letter); ok {
		res.Accepted = true
		res.LastGuess = &g
	}
	res.State = e.Snapshot()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if s.dailyLocked(w, sess) {
		return
	}
	e := sess.Engine
	if err := e.Restart(); err != nil {
		writeEngineError(w, err, s.cat, "")
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if s.dailyLocked(w, sess) {
		return
	}
	e := sess.Engine
	e.Reset()
	writeJSON(w, http.StatusOK, e.Snapshot())
}

type categoryReq struct {
	Category string `json:"category"`
}

// handleCategory starts a new round in another category on the same session.
// A daily session books that category's attempt for today first.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r)
	category := s.canonical(req.Category)
	if sess.Daily && !s.rebookDaily(w, r, sess, req.Category, category) {
		return
	}
	if err := sess.Engine.StartRound(category); err != nil {
		writeEngineError(w, err, s.cat, req.Category)
		return
	}
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

// ------------------------------ STATS --------------------------------------

func (s *Server) handleStatsMe(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats_disabled")
		return
	}
	st, err := s.stats.PlayerStats(r.Context(), s.ensurePlayerID(w, r))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("player stats")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatsRecent(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats_disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 100 {
		limit = 100
	}
	rows, err := s.stats.Recent(r.Context(), s.ensurePlayerID(w, r), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("recent rounds")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ------------------------------- helpers -----------------------------------

// canonical maps a case-insensitive category name onto the catalog's spelling.
// Unknown names are returned trimmed so the engine can reject them.
func (s *Server) canonical(name string) string {
	name = strings.TrimSpace(name)
	if c, ok := s.cat.Resolve(name); ok {
		return c
	}
	return name
}

func (s *Server) dailyPlayed(ctx context.Context, player, category string) bool {
	if s.daily == nil {
		return false
	}
	played, err := s.daily.AlreadyPlayed(ctx, player, daily.DateKey(s.now()), category)
	if err != nil {
		log.Warn().Err(err).Msg("daily lookup")
		return false
	}
	return played
}

// writeEngineError maps engine sentinel errors onto status codes.
func writeEngineError(w http.ResponseWriter, err error, cat *catalog.Catalog, asked string) {
	switch {
	case errors.Is(err, game.ErrInvalidCategory):
		body := map[string]string{"error": "invalid_category"}
		if sug, ok := cat.Suggest(asked); ok {
			body["suggestion"] = sug
		}
		writeJSON(w, http.StatusNotFound, body)
	case errors.Is(err, game.ErrEmptyCategory):
		writeError(w, http.StatusConflict, "empty_category")
	case errors.Is(err, game.ErrNoCategories):
		writeError(w, http.StatusServiceUnavailable, "no_categories")
	case errors.Is(err, game.ErrNoRound):
		writeError(w, http.StatusConflict, "no_round")
	default:
		log.Error().Err(err).Msg("engine")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
