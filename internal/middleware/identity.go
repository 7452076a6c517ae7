package middleware

// identity.go provides the user identifier used for rate-limit keying.  It
// reads the user_id placed in the context by JWTAuth; unauthenticated
// requests (the public spot listing) fall back to "anon".

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user id as a string for key
// construction, or "anon" when no identity is present.
func currentUserID(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case string:
        if v != "" {
            return v
        }
    case float64:
        return strconv.FormatUint(uint64(v), 10)
    case uint64:
        return strconv.FormatUint(v, 10)
    }
    return "anon"
}
