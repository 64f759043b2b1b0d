package security

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Context key the websocket handler reads the verified identity from.
const CtxUserKey = "authUserId"

type Options struct {
	Secret []byte
	Alg    string // HS256/HS384/HS512, default HS256
}

func DefaultOptions(secret []byte) *Options {
	return &Options{Secret: secret, Alg: "HS256"}
}

// Middleware verifies the bearer token (header or ?token= for websocket
// clients that cannot set headers) and stores the subject claim in the
// gin context. Downstream only ever sees an already-verified user id.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "missing token"})
			return
		}

		userID, err := verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid token"})
			return
		}

		c.Set(CtxUserKey, userID)
		c.Next()
	}
}

// UserID returns the verified identity placed by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}

func verify(opts *Options, token string) (string, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, jwtlib.ErrSignatureInvalid
		}
		return opts.Secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", jwtlib.ErrTokenUnverifiable
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", jwtlib.ErrTokenInvalidClaims
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return "", jwtlib.ErrTokenInvalidSubject
	}
	return sub, nil
}

// Generate issues an HMAC token for the given user. Kept next to verify
// so dev tooling and tests mint tokens the exact way the middleware
// checks them.
func Generate(opts *Options, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tok.SignedString(opts.Secret)
}
