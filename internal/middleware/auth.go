package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/model"
)

const identityKey = "identity"

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

type IdentityResolver interface {
	Lookup(ctx context.Context, email string) (*model.User, error)
}

// Auth admits a request only when it carries a valid token naming a user
// that still exists. The resolved user is available through Identity.
func Auth(tokens TokenVerifier, users IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(auth.Header)
			if raw == "" {
				return auth.ErrMissingToken
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				return err
			}

			u, err := users.Lookup(c.Request().Context(), claims.Email)
			if err != nil {
				return err
			}

			c.Set(identityKey, u)
			return next(c)
		}
	}
}

// Identity returns the user admitted by Auth.
func Identity(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(identityKey).(*model.User)
	return u, ok
}
