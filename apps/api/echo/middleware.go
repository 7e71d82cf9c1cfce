package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
)

// identityMiddleware puts the caller's user.Identity in the context. It runs after the JWT middleware.
func identityMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := resolveIdentity(ctx, conf)
			if err != nil {
				return err
			}
			ctx.Set(contextIdentityKey, id)
			return next(ctx)
		}
	}
}

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			for _, role := range roles {
				if id.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// withRoles returns a copy of the auth chain followed by a role check.
func withRoles(auth []echo.MiddlewareFunc, roles ...string) []echo.MiddlewareFunc {
	chain := make([]echo.MiddlewareFunc, 0, len(auth)+1)
	chain = append(chain, auth...)
	return append(chain, roleMiddleware(roles...))
}
