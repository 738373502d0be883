package middleware

import "github.com/labstack/echo/v4"

// Context keys used to store authentication metadata.
const (
	ContextKeySubject   = "auth_subject"
	ContextKeyEmail     = "auth_email"
	ContextKeyRole      = "auth_role"
	ContextKeyRequestID = "request_id"
)

// HeaderRequestID is read from callers and echoed on every response.
const HeaderRequestID = "X-Request-ID"

// reject writes the same error envelope the handlers use. It is duplicated
// here because handler imports this package.
func reject(c echo.Context, status int, message string) error {
	body := map[string]string{"status": "error", "message": message}
	if rid := RequestIDFromContext(c); rid != "" {
		body["request_id"] = rid
	}
	return c.JSON(status, body)
}
