package httpapi

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/blockbridge-backend/internal/config"
)

// Sessions identify a browser without accounts: a signed cookie carries a
// random id minted on first contact. The id scopes "current program"
// lookups; there is nothing to log in to and nothing personal inside.

const sessionIDKey = "session_id"

type sessionClaims struct {
	jwt.RegisteredClaims
}

type SessionManager struct {
	cookieName string
	ttl        time.Duration
	secret     []byte
}

// NewSessionManager builds the cookie minting/verifying helper. An empty
// secret gets a random per-process one: sessions then reset on restart,
// which only costs students their "current program" pointer.
func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	name := cfg.CookieName
	if name == "" {
		name = "bb_session"
	}
	ttl := cfg.TTL.Duration
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &SessionManager{cookieName: name, ttl: ttl, secret: secret}
}

func (m *SessionManager) mint(id uuid.UUID) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *SessionManager) parse(tokenString string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session: %w", err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid session token")
	}
	return uuid.Parse(claims.Subject)
}

// Middleware restores the session from the cookie or mints a fresh one.
// Invalid or expired cookies are silently replaced, never rejected: the
// worst a student loses is their latest-submission pointer.
func (m *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(m.cookieName); err == nil {
			if id, perr := m.parse(raw); perr == nil {
				c.Set(sessionIDKey, id)
				c.Next()
				return
			}
		}

		id := uuid.New()
		signed, err := m.mint(id)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "session_mint_failed", err)
			c.Abort()
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(m.cookieName, signed, int(m.ttl.Seconds()), "/", "", false, true)
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(sessionIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
