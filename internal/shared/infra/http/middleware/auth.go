package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	"github.com/davicafu/civicreport/pkg/utils"
)

const viewerKey = "viewer"

// ErrInvalidToken agrupa cualquier fallo al verificar el bearer token.
var ErrInvalidToken = errors.New("invalid token")

// Claims es el contenido que esperamos del token. La emisión queda fuera de
// este servicio; aquí solo se verifica.
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	Role     string `json:"role"`
	Category string `json:"category,omitempty"`
	Division string `json:"division,omitempty"`
	jwt.RegisteredClaims
}

// Viewer traduce los claims a la identidad de la petición. sub tiene prioridad
// sobre user_id.
func (c Claims) Viewer() sharedDomain.Viewer {
	id := c.Subject
	if id == "" {
		id = c.UserID
	}
	role := c.Role
	if role == "" {
		role = sharedDomain.RoleCitizen
	}
	return sharedDomain.Viewer{UserID: id, Role: role, Category: c.Category, Division: c.Division}
}

// ParseToken verifica un token HS256 con el secreto dado.
func ParseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" && claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate identifica al usuario si trae token. Sin cabecera la petición
// sigue como invitado; un token presente pero inválido se rechaza con 401.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(viewerKey, sharedDomain.Viewer{})
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			utils.SendError(c, http.StatusUnauthorized, "malformed authorization header")
			c.Abort()
			return
		}

		claims, err := ParseToken(strings.TrimSpace(raw), secret)
		if err != nil {
			utils.SendError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(viewerKey, claims.Viewer())
		c.Next()
	}
}

// RequireAuth corta las peticiones de invitados.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ViewerFrom(c).IsGuest() {
			utils.SendError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ViewerFrom devuelve la identidad guardada por Authenticate, o un invitado.
func ViewerFrom(c *gin.Context) sharedDomain.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(sharedDomain.Viewer); ok {
			return viewer
		}
	}
	return sharedDomain.Viewer{}
}

// WithViewer fija la identidad directamente (tests y herramientas internas).
func WithViewer(v sharedDomain.Viewer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(viewerKey, v)
		c.Next()
	}
}
