package echoapi

import (
	"crypto/subtle"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/user"
)

const (
	contextTokenKey    = "userToken"
	contextIdentityKey = "identity"

	headerInternalKey = "X-Internal-Api-Key"
	headerUserID      = "X-User-Id"
	headerUserRole    = "X-User-Role"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
}

func NewClaims(conf *core.Config, id user.Identity, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   id.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role:  id.Role,
		Email: id.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		Skipper: func(ctx echo.Context) bool {
			return isInternalCall(ctx, conf.Auth.InternalAPIKey)
		},
		SigningKey:    []byte(conf.Auth.JWTSecret),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// isInternalCall reports whether the request carries the configured internal API key.
// An empty key disables internal calls.
func isInternalCall(ctx echo.Context, key string) bool {
	if key == "" {
		return false
	}
	got := ctx.Request().Header.Get(headerInternalKey)
	return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// resolveIdentity reads the caller from the internal headers or the bearer token claims.
func resolveIdentity(ctx echo.Context, conf *core.Config) (user.Identity, error) {
	var id user.Identity
	if isInternalCall(ctx, conf.Auth.InternalAPIKey) {
		hdr := ctx.Request().Header
		id.ID = core.CleanString(hdr.Get(headerUserID))
		id.Role = core.CleanString(hdr.Get(headerUserRole), true /* lower */)
		if id.Role == "" {
			id.Role = user.RoleStudent
		}
	} else {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return user.Identity{}, err
		}
		id = user.Identity{ID: claims.Subject, Role: claims.Role, Email: claims.Email}
	}

	if id.ID == "" || !user.IsValidRole(id.Role) {
		return user.Identity{}, errUnauthorized
	}
	return id, nil
}

func getContextIdentity(ctx echo.Context) (user.Identity, error) {
	if id, ok := ctx.Get(contextIdentityKey).(user.Identity); ok {
		return id, nil
	}
	return user.Identity{}, errUnauthorized
}
