package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/comunidadednb/billing-service/internal/config"
)

const (
	// ServiceRole marks tokens issued to internal services; they bypass
	// the per-user role checks.
	ServiceRole = "service_role"
	AdminRole   = "admin"
)

// Identity is the verified caller extracted from the bearer token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (i Identity) IsService() bool {
	return i.Role == ServiceRole
}

func (i Identity) IsAdmin() bool {
	return i.Role == ServiceRole || i.Role == AdminRole
}

type Middleware struct {
	cfg *config.Config
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{cfg: cfg}
}

// Handler verifies the bearer token and injects the caller identity. No
// side effect happens before this check passes.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := m.verify(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("identity", identity)
		c.Next()
	}
}

// RequireAdmin gates endpoints reserved for administrators. Service tokens
// pass; user tokens must carry the admin role.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func (m *Middleware) verify(authHeader string) (Identity, error) {
	if authHeader == "" {
		return Identity{}, fmt.Errorf("missing_token")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.AuthJWTSecret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid_token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid_claims")
	}

	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	if role != ServiceRole && (sub == "" || email == "") {
		return Identity{}, fmt.Errorf("missing_claims")
	}

	return Identity{UserID: sub, Email: email, Role: role}, nil
}

// IdentityFrom returns the identity the auth middleware stored on the
// request context.
func IdentityFrom(c *gin.Context) Identity {
	if v, ok := c.Get("identity"); ok {
		if identity, ok := v.(Identity); ok {
			return identity
		}
	}
	return Identity{}
}
