package middleware

// identity.go defines helper functions shared across middleware files.
// currentUserID pulls the user identifier that JWTAuth stored in the Echo
// context so cache and rate-limit keys can be scoped per user.  When no
// user is authenticated, "anon" is returned.

import "github.com/labstack/echo/v4"

// currentUserID extracts the authenticated user's identifier from context.
func currentUserID(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if v := c.Get("userID"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anon"
}
