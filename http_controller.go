package accounts

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/coursekit/go-accounts/middleware/jwtware"
)

// AccountControllerRoutes holds the route paths for the JSON API.
type AccountControllerRoutes struct {
	Register       string
	Verify         string
	Resend         string
	Login          string
	Logout         string
	Me             string
	ForgotPassword string
	ResetPassword  string
}

// AccountController exposes the lifecycle service over HTTP. Payload
// validation happens here; the service never sees malformed input.
type AccountController struct {
	Debug        bool
	Logger       Logger
	Service      *Lifecycle
	Config       Config
	Routes       *AccountControllerRoutes
	ErrorHandler router.ErrorHandler
}

// AccountControllerOption mutates the controller during construction.
type AccountControllerOption func(*AccountController) *AccountController

// NewAccountController builds a controller with default routes.
func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountControllerRoutes{
			Register:       "/auth/register",
			Verify:         "/auth/verify",
			Resend:         "/auth/resend-verification",
			Login:          "/auth/login",
			Logout:         "/auth/logout",
			Me:             "/auth/me",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
		},
	}
	c.ErrorHandler = c.respondError

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Lifecycle service in account controller...")
	}

	return c
}

// WithService sets the lifecycle service.
func WithService(s *Lifecycle) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Service = s
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(l Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = l
		return c
	}
}

// WithControllerConfig sets the session token configuration used by the
// current-user route.
func WithControllerConfig(cfg Config) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Config = cfg
		return c
	}
}

// RegisterAccountRoutes wires the controller into a router.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {
	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.Register).SetName("auth.register")
	app.Post(controller.Routes.Verify, controller.Verify).SetName("auth.verify")
	app.Post(controller.Routes.Resend, controller.ResendVerification).SetName("auth.resend")
	app.Post(controller.Routes.Login, controller.Login).SetName("auth.login")
	app.Post(controller.Routes.Logout, controller.Logout).SetName("auth.logout")
	app.Get(controller.Routes.Me, controller.Me).SetName("auth.me")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).SetName("auth.forgot")
	app.Post(controller.Routes.ResetPassword, controller.ResetPassword).SetName("auth.reset")
}

// RegisterPayload is the registration request body.
type RegisterPayload struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidation(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(map[string]string{
			"name":  payload.Name,
			"email": payload.Email,
		}))
	}

	result, err := a.Service.Register(ctx.Context(), RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}

	return ctx.JSON(status, map[string]any{"message": result.Message})
}

// VerifyPayload is the email verification request body.
type VerifyPayload struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"verificationCode" json:"verificationCode"`
}

// Validate will run validation rules
func (r VerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required),
	)
}

func (a *AccountController) Verify(ctx router.Context) error {
	payload := new(VerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidation(ctx, err)
	}

	if err := a.Service.Verify(ctx.Context(), payload.Email, payload.Code); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"message": MsgVerified})
}

// EmailPayload is shared by resend-verification and forgot-password.
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountController) ResendVerification(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidation(ctx, err)
	}

	result, err := a.Service.ResendVerification(ctx.Context(), payload.Email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"message": result.Message})
}

// LoginPayload is the login request body.
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

func (a *AccountController) Login(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidation(ctx, err)
	}

	result, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "login successful",
		"token":   result.Token,
		"user":    result.User,
	})
}

func (a *AccountController) Logout(ctx router.Context) error {
	return ctx.JSON(fiber.StatusOK, map[string]any{"message": a.Service.Logout()})
}

func (a *AccountController) Me(ctx router.Context) error {
	lookup := "header:" + router.HeaderAuthorization
	scheme := "Bearer"
	if a.Config != nil {
		if a.Config.GetTokenLookup() != "" {
			lookup = a.Config.GetTokenLookup()
		}
		if a.Config.GetAuthScheme() != "" {
			scheme = a.Config.GetAuthScheme()
		}
	}

	token, err := jwtware.ExtractRawTokenFromContext(ctx, jwtware.GetExtractors(lookup, scheme))
	if err != nil || token == "" {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	user, err := a.Service.CurrentUser(ctx.Context(), token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"user": user})
}

func (a *AccountController) ForgotPassword(ctx router.Context) error {
	payload := new(EmailPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidation(ctx, err)
	}

	result, err := a.Service.ForgotPassword(ctx.Context(), payload.Email)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"message": result.Message})
}

// ResetPayload is the password reset request body.
type ResetPayload struct {
	Token       string `form:"token" json:"token"`
	NewPassword string `form:"newPassword" json:"newPassword"`
}

// Validate will run validation rules
func (r ResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AccountController) ResetPassword(ctx router.Context) error {
	payload := new(ResetPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.respondBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.respondValidation(ctx, err)
	}

	if err := a.Service.ResetPassword(ctx.Context(), payload.Token, payload.NewPassword); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{"message": MsgPasswordReset})
}

func (a *AccountController) respondBadPayload(ctx router.Context, err error) error {
	a.Logger.Error("account controller parse payload: ", "error", err)
	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"error":  "failed to parse request body",
		"errors": map[string]string{"body": err.Error()},
	})
}

func (a *AccountController) respondValidation(ctx router.Context, err error) error {
	a.Logger.Error("account controller validate payload: ", "error", err)
	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"errors": FormatValidationErrorToMap(err),
	})
}

// respondError maps lifecycle errors to JSON responses. Business errors
// carry their own status and fixed message; anything else becomes a 500
// with no internal detail leaked.
func (a *AccountController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"account controller error",
		"category", richErr.Category,
		"text_code", richErr.TextCode,
	)

	// an account without a password credential answers exactly like a
	// wrong password, so the distinction never leaks
	if richErr.TextCode == TextCodeNoCredential {
		richErr = ErrInvalidCredentials
	}

	if richErr.Category == goerrors.CategoryInternal {
		return ctx.JSON(fiber.StatusInternalServerError, map[string]any{
			"error": "internal server error",
		})
	}

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	return ctx.JSON(status, map[string]any{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for the response body.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
