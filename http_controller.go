package contacts

import (
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	"github.com/goliatone/go-contacts/middleware/bearer"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// APIController serves the JSON API: the auth flows plus the per-user
// contacts collection.
type APIController struct {
	Logger   Logger
	Repo     RepositoryManager
	Sessions *SessionManager
	Signup   *SignupHandler
	Confirm  *ConfirmEmailHandler
	Resend   *ResendConfirmationHandler
}

type APIControllerOption func(*APIController) *APIController

func WithControllerLogger(logger Logger) APIControllerOption {
	return func(c *APIController) *APIController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewAPIController(repo RepositoryManager, sessions *SessionManager, signup *SignupHandler, confirm *ConfirmEmailHandler, resend *ResendConfirmationHandler, opts ...APIControllerOption) *APIController {
	c := &APIController{
		Logger:   defLogger{},
		Repo:     repo,
		Sessions: sessions,
		Signup:   signup,
		Confirm:  confirm,
		Resend:   resend,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in api controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in api controller...")
	}

	return c
}

// RegisterRoutes wires the API surface. Everything under /api/contacts and
// /api/users requires a bearer access token.
func (a *APIController) RegisterRoutes(app RouteRegistrar) {
	protected := RequireUser(a.Sessions, a.Logger)

	app.Post("/api/auth/signup", a.SignupPost)
	app.Post("/api/auth/login", a.LoginPost)
	app.Get("/api/auth/refresh", a.RefreshGet)
	app.Get("/api/auth/confirm/:token", a.ConfirmGet)
	app.Post("/api/auth/resend", a.ResendPost)

	app.Get("/api/users/me", a.MeGet, protected)

	app.Get("/api/contacts", a.ContactsList, protected)
	app.Post("/api/contacts", a.ContactsCreate, protected)
	app.Get("/api/contacts/birthdays", a.ContactsBirthdays, protected)
	app.Get("/api/contacts/:id", a.ContactsGet, protected)
	app.Put("/api/contacts/:id", a.ContactsUpdate, protected)
	app.Patch("/api/contacts/:id/favorite", a.ContactsFavorite, protected)
	app.Delete("/api/contacts/:id", a.ContactsDelete, protected)
}

// SignupPayload is the registration body
type SignupPayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *APIController) SignupPost(ctx router.Context) error {
	payload := new(SignupPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", err)
	}

	var created *User

	msg := SignupMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnCreated: func(u *User) {
			created = u
		},
	}

	if err := a.Signup.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("signup error", "email", payload.Email, "error", err)
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"user":   created,
		"detail": "Account created. Check your email for a confirmation link.",
	})
}

// LoginPayload is the credential body
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *APIController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", err)
	}

	pair, err := a.Sessions.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, pair)
}

// RefreshGet exchanges the refresh token in the Authorization header for a
// new pair.
func (a *APIController) RefreshGet(ctx router.Context) error {
	raw, err := bearer.ExtractRawTokenFromContext(ctx, bearer.GetExtractors("header:"+router.HeaderAuthorization))
	if err != nil || raw == "" {
		return ctx.Status(http.StatusUnauthorized).JSON(APIErrorResponse{
			Error: APIError{Message: "Not authenticated"},
		})
	}

	pair, err := a.Sessions.Refresh(ctx.Context(), raw)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *APIController) ConfirmGet(ctx router.Context) error {
	token := ctx.Param("token")

	var resp *ConfirmEmailResponse
	msg := ConfirmEmailMessage{
		Token: token,
		OnResponse: func(r *ConfirmEmailResponse) {
			resp = r
		},
	}

	if err := a.Confirm.Execute(ctx.Context(), msg); err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	detail := "Email confirmed"
	if resp != nil && resp.AlreadyConfirmed {
		detail = "Your email is already confirmed"
	}

	return ctx.JSON(http.StatusOK, map[string]any{"detail": detail})
}

// ResendPayload holds the address to resend the confirmation to
type ResendPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ResendPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *APIController) ResendPost(ctx router.Context) error {
	payload := new(ResendPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", err)
	}

	msg := ResendConfirmationMessage{Email: payload.Email}

	if err := a.Resend.Execute(ctx.Context(), msg); err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	// Same reply for every outcome so the endpoint cannot confirm which
	// addresses have accounts.
	return ctx.JSON(http.StatusOK, map[string]any{
		"detail": "If the address has an account, a confirmation email is on its way.",
	})
}

func (a *APIController) MeGet(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return ctx.Status(http.StatusUnauthorized).JSON(APIErrorResponse{
			Error: APIError{Message: "Not authenticated"},
		})
	}

	return ctx.JSON(http.StatusOK, user)
}

// ContactPayload is the create/update body for a contact
type ContactPayload struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Phone     string `form:"phone_number" json:"phone_number"`
	Birthday  string `form:"birthday" json:"birthday"`
	Comments  string `form:"comments" json:"comments"`
	Favorite  bool   `form:"favorite" json:"favorite"`
}

// Validate will run validation rules
func (r ContactPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.Birthday, validation.Date("2006-01-02")),
		validation.Field(&r.Comments, validation.Length(0, 500)),
	)
}

func (r ContactPayload) toRecord() (*Contact, error) {
	record := &Contact{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Comments:  r.Comments,
		Favorite:  r.Favorite,
	}

	if r.Birthday != "" {
		birthday, err := time.Parse("2006-01-02", r.Birthday)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid birthday format")
		}
		record.Birthday = &birthday
	}

	return record, nil
}

func (a *APIController) ContactsList(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	filter := ContactFilter{
		Search: ctx.Query("search", ""),
	}

	if raw := ctx.Query("favorite", ""); raw != "" {
		favorite := raw == "true" || raw == "1"
		filter.Favorite = &favorite
	}

	if raw := ctx.Query("limit", ""); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	if raw := ctx.Query("offset", ""); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	records, total, err := a.Repo.Contacts().List(ctx.Context(), user.ID, filter)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"items": records,
		"total": total,
	})
}

func (a *APIController) ContactsCreate(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	payload := new(ContactPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", err)
	}

	record, err := payload.toRecord()
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	record, err = a.Repo.Contacts().CreateOwned(ctx.Context(), user.ID, record)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusCreated, record)
}

func (a *APIController) ContactsGet(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.badRequest(ctx, "Invalid contact id", err)
	}

	record, err := a.Repo.Contacts().GetOwned(ctx.Context(), user.ID, contactID)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, record)
}

func (a *APIController) ContactsUpdate(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.badRequest(ctx, "Invalid contact id", err)
	}

	payload := new(ContactPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.badRequest(ctx, "Error validating payload", err)
	}

	record, err := payload.toRecord()
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	record.ID = contactID

	record, err = a.Repo.Contacts().UpdateOwned(ctx.Context(), user.ID, record)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, record)
}

// FavoritePayload toggles the favorite flag
type FavoritePayload struct {
	Favorite bool `form:"favorite" json:"favorite"`
}

func (a *APIController) ContactsFavorite(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.badRequest(ctx, "Invalid contact id", err)
	}

	payload := new(FavoritePayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	record, err := a.Repo.Contacts().SetFavorite(ctx.Context(), user.ID, contactID, payload.Favorite)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, record)
}

func (a *APIController) ContactsDelete(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	contactID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.badRequest(ctx, "Invalid contact id", err)
	}

	if err := a.Repo.Contacts().DeleteOwned(ctx.Context(), user.ID, contactID); err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusNoContent, nil)
}

func (a *APIController) ContactsBirthdays(ctx router.Context) error {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return a.notAuthenticated(ctx)
	}

	days := 7
	if raw := ctx.Query("days", ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	records, err := a.Repo.Contacts().UpcomingBirthdays(ctx.Context(), user.ID, days)
	if err != nil {
		return RenderError(ctx, err, a.Logger)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"items": records,
		"days":  days,
	})
}

func (a *APIController) badRequest(ctx router.Context, detail string, err error) error {
	a.Logger.Error(detail, "error", err)
	return ctx.Status(http.StatusBadRequest).JSON(APIErrorResponse{
		Error: APIError{Message: err.Error()},
	})
}

func (a *APIController) notAuthenticated(ctx router.Context) error {
	return ctx.Status(http.StatusUnauthorized).JSON(APIErrorResponse{
		Error: APIError{Message: "Not authenticated"},
	})
}
