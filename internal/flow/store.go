package flow

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "flow_state"

type claims struct {
	State
	jwt.RegisteredClaims
}

// Store keeps State in a signed cookie. Tampered or expired cookies load as
// an empty state, which aborts any flow in progress.
type Store struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewStore(secret string, ttl time.Duration, secure bool) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}
}

func (s *Store) Load(r *http.Request) *State {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return NewState()
	}

	var c claims
	_, err = jwt.ParseWithClaims(cookie.Value, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		slog.Debug("discarding flow state cookie", "error", err)
		return NewState()
	}

	if c.Flows == nil {
		return NewState()
	}
	return &c.State
}

// Save writes the state back. An empty state deletes the cookie.
func (s *Store) Save(w http.ResponseWriter, state *State) error {
	if state == nil || state.Empty() {
		s.clear(w)
		return nil
	}

	now := time.Now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		State: *state,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	value, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign flow state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Store) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
