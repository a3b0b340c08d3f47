// internal/httpserver/session.go
//
// Session tokens and player identity.
//
//   - A session token is an HS256 JWT carrying the session ID (sid) and player ID (pid).
//     It is returned in the POST /game/new body and set as an HttpOnly cookie.
//   - Requests present it as "Authorization: Bearer <token>", the session cookie,
//     or ?token= (browsers cannot set headers on a websocket handshake).
//   - Players are anonymous: a long-lived random cookie ties sessions to one stats history.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Chious/fm-hangman-game/internal/store"
)

const (
	sessionCookieName = "hangman_session"
	playerCookieName  = "hangman_player"
	playerCookieTTL   = 180 * 24 * time.Hour
)

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	SessionID string `json:"sid"`
	PlayerID  string `json:"pid"`
	jwt.RegisteredClaims
}

// signToken creates an HS256 JWT for a session, valid for cfg.JWTTTL.
func (s *Server) signToken(sessionID, playerID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.cfg.JWTTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sessionID,
		PlayerID:  playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

var errBadClaims = errors.New("token is missing session claims")

func (s *Server) parseToken(tok string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" || claims.PlayerID == "" {
		return nil, errBadClaims
	}
	return claims, nil
}

// tokenFrom extracts a session token from the Authorization header, cookie or query.
func tokenFrom(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// ctxSessionKey is the context key type for storing the resolved session.
type ctxSessionKey struct{}

// requireSession resolves the request's token to a live session and injects
// it into the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := tokenFrom(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := s.parseToken(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		sess, err := s.sessions.Get(r.Context(), claims.SessionID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_expired")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "session_lookup")
			return
		}
		if sess.PlayerID != claims.PlayerID {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(r *http.Request) *store.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*store.Session)
	return sess
}

// setSessionCookie writes the session token cookie with appropriate security attributes.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// ensurePlayerID returns an existing player cookie or sets a new one.
func (s *Server) ensurePlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(playerCookieTTL),
	})
	return id
}

func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return http.SameSiteLaxMode
}

// checkOrigin admits websocket handshakes from the configured client origin,
// the server's own host, or non-browser clients that send no Origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
