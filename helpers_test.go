package authui_test

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"testing"

	authui "github.com/goliatone/go-auth-ui"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/driver/password"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSigningKey = "test-signing-key-that-is-long-enough-for-hmac"

func init() {
	auth.SetPasswordHashCost(4)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func testConfig() *authui.ConfigOptions {
	cfg := authui.DefaultConfig()
	cfg.Session.SigningKey = testSigningKey
	cfg.Session.CookieSecure = false
	cfg.Auth.SignUpConfirmation = false
	cfg.UI.SignUpAdminNotify = false
	cfg.UI.StatusChangeNotify = false
	return cfg
}

func setupService(t *testing.T, cfg *authui.ConfigOptions) *auth.Service {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.Migrate(context.Background()))

	return auth.NewService(repo, cfg, auth.WithServiceLogger(nopLogger{}))
}

func newRegistry(t *testing.T, cfg authui.Config, svc *auth.Service) *authui.Registry {
	t.Helper()
	registry := authui.NewRegistry(authui.WithRegistryBasePath(cfg.GetBasePath()))
	require.NoError(t, registry.Register(password.New(password.WithFieldChecker(svc))))
	return registry
}

type flashMessage struct {
	Kind    string
	Message string
}

type testFlash struct {
	messages []flashMessage
}

func (f *testFlash) Error(ctx router.Context, message string) router.Context {
	f.messages = append(f.messages, flashMessage{Kind: "error", Message: message})
	return ctx
}

func (f *testFlash) Success(ctx router.Context, message string) router.Context {
	f.messages = append(f.messages, flashMessage{Kind: "success", Message: message})
	return ctx
}

func (f *testFlash) last() flashMessage {
	if len(f.messages) == 0 {
		return flashMessage{}
	}
	return f.messages[len(f.messages)-1]
}

type testApp struct {
	cfg        *authui.ConfigOptions
	svc        *auth.Service
	registry   *authui.Registry
	flash      *testFlash
	controller *authui.Controller
	handled    error
}

func newTestApp(t *testing.T, cfg *authui.ConfigOptions, opts ...authui.ControllerOption) *testApp {
	t.Helper()

	app := &testApp{
		cfg:   cfg,
		svc:   setupService(t, cfg),
		flash: &testFlash{},
	}
	app.registry = newRegistry(t, cfg, app.svc)

	opts = append([]authui.ControllerOption{
		authui.WithControllerLogger(nopLogger{}),
		authui.WithFlash(app.flash),
		authui.WithErrorHandler(func(ctx router.Context, err error) error {
			app.handled = err
			return nil
		}),
	}, opts...)

	app.controller = authui.NewController(app.svc, app.registry, cfg, opts...)
	return app
}

// createUser stores an active user, admin adds the admin role
func (a *testApp) createUser(t *testing.T, login string, admin bool) *auth.User {
	t.Helper()
	ctx := context.Background()

	roles := []string{auth.RoleUser}
	if admin {
		roles = append(roles, auth.RoleAdmin)
	}

	user, err := a.svc.CreateUser(ctx, &auth.User{
		Login:     login,
		FirstName: strings.ToUpper(login[:1]) + login[1:strings.Index(login, "@")],
		Status:    auth.UserStatusActive,
		IsPublic:  true,
		Roles:     roles,
	}, "secret-password")
	require.NoError(t, err)
	return user
}

// testContext is a router.Context backed by plain maps
type testContext struct {
	*router.MockContext

	ctx         context.Context
	method      string
	path        string
	originalURL string
	query       map[string]string
	params      map[string]string
	headers     map[string]string
	body        []byte
	locals      map[any]any
	cookies     map[string]string

	setCookies     []*router.Cookie
	respHeaders    map[string]string
	status         int
	view           string
	viewData       router.ViewContext
	redirect       string
	redirectStatus int
	jsonCode       int
	jsonBody       any
}

func newTestContext(method, target string) *testContext {
	u, err := url.Parse(target)
	if err != nil {
		panic(err)
	}

	query := map[string]string{}
	for k, v := range u.Query() {
		query[k] = v[len(v)-1]
	}

	return &testContext{
		MockContext: router.NewMockContext(),
		ctx:         context.Background(),
		method:      method,
		path:        u.Path,
		originalURL: u.RequestURI(),
		query:       query,
		params:      map[string]string{},
		headers:     map[string]string{},
		locals:      map[any]any{},
		cookies:     map[string]string{},
		respHeaders: map[string]string{},
	}
}

// withForm sets an urlencoded request body
func (c *testContext) withForm(values url.Values) *testContext {
	c.headers["Content-Type"] = "application/x-www-form-urlencoded"
	c.body = []byte(values.Encode())
	return c
}

func (c *testContext) withParam(key, value string) *testContext {
	c.params[key] = value
	return c
}

func (c *testContext) withUser(user *auth.User) *testContext {
	authui.SetCurrentUser(c, user)
	return c
}

func (c *testContext) Context() context.Context {
	return c.ctx
}

func (c *testContext) Method() string {
	return c.method
}

func (c *testContext) Path() string {
	return c.path
}

func (c *testContext) OriginalURL() string {
	return c.originalURL
}

func (c *testContext) Body() []byte {
	return c.body
}

func (c *testContext) Header(key string) string {
	return c.headers[key]
}

func (c *testContext) SetHeader(key, val string) router.Context {
	c.respHeaders[key] = val
	return c
}

func (c *testContext) Query(key string, defaultValue ...string) string {
	if v, ok := c.query[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) Queries() map[string]string {
	return c.query
}

func (c *testContext) Param(key string, defaultValue ...string) string {
	if v, ok := c.params[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *testContext) Cookie(cookie *router.Cookie) {
	c.setCookies = append(c.setCookies, cookie)
}

func (c *testContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) Status(code int) router.Context {
	c.status = code
	return c
}

func (c *testContext) Render(name string, bind any, layout ...string) error {
	c.view = name
	c.viewData, _ = bind.(router.ViewContext)
	return nil
}

func (c *testContext) Redirect(path string, status ...int) error {
	c.redirect = path
	if len(status) > 0 {
		c.redirectStatus = status[0]
	}
	return nil
}

func (c *testContext) JSON(code int, val any) error {
	c.jsonCode = code
	c.jsonBody = val
	return nil
}

// lastCookie returns the last cookie written with name
func (c *testContext) lastCookie(name string) *router.Cookie {
	for i := len(c.setCookies) - 1; i >= 0; i-- {
		if c.setCookies[i].Name == name {
			return c.setCookies[i]
		}
	}
	return nil
}
