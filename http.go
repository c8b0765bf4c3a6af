package contacts

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-contacts/middleware/bearer"
)

// APIError is the JSON error body. TextCode is the stable, machine-readable
// discriminator; Message is for humans and may change.
type APIError struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

type APIErrorResponse struct {
	Error APIError `json:"error"`
}

var textCodeStatus = map[string]int{
	TextCodeUnknownEmail:      http.StatusUnauthorized,
	TextCodeEmailNotConfirmed: http.StatusUnauthorized,
	TextCodeInvalidPassword:   http.StatusUnauthorized,
	TextCodeInvalidSignature:  http.StatusUnauthorized,
	TextCodeTokenExpired:      http.StatusUnauthorized,
	TextCodeWrongScope:        http.StatusUnauthorized,
	TextCodeRevokedToken:      http.StatusUnauthorized,
	TextCodeAccountExists:     http.StatusConflict,
	TextCodeVerification:      http.StatusBadRequest,
	TextCodeTimeout:           http.StatusGatewayTimeout,
}

// StatusForError maps any error to an HTTP status. The mapping is total:
// auth failures read as 401, everything unrecognized as 500 so internals
// never leak as client errors.
func StatusForError(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if status, ok := textCodeStatus[richErr.TextCode]; ok {
		return status
	}

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RenderError writes the JSON error body for err. Server-side failures get
// a generic message; the original error stays in the logs only.
func RenderError(ctx router.Context, err error, logger Logger) error {
	if logger == nil {
		logger = defLogger{}
	}

	status := StatusForError(err)

	body := APIError{Message: "Internal server error"}
	if status < http.StatusInternalServerError {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			body.Message = richErr.Message
			body.TextCode = richErr.TextCode
		} else {
			body.Message = err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Info("request rejected", "status", status, "error", err)
	}

	return ctx.Status(status).JSON(APIErrorResponse{Error: body})
}

// RequireUser authenticates the request with a bearer access token and
// stores the resolved *User in both the router locals and the standard
// context.
func RequireUser(sessions *SessionManager, logger Logger) router.MiddlewareFunc {
	return bearer.New(bearer.Config{
		Resolver: bearer.ResolverFunc(func(ctx context.Context, token string) (any, error) {
			return sessions.CurrentUser(ctx, token)
		}),
		ContextEnricher: func(c context.Context, identity any) context.Context {
			if user, ok := identity.(*User); ok {
				return WithContext(c, user)
			}
			return c
		},
		ErrorHandler: func(c router.Context, err error) error {
			if err.Error() == bearer.ErrTokenMissingOrMalformed.Error() {
				return c.Status(http.StatusUnauthorized).JSON(APIErrorResponse{
					Error: APIError{Message: "Not authenticated"},
				})
			}
			return RenderError(c, err, logger)
		},
	})
}
