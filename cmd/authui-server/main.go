package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	authui "github.com/goliatone/go-auth-ui"
	"github.com/goliatone/go-auth-ui/auth"
	"github.com/goliatone/go-auth-ui/driver/password"
	"github.com/goliatone/go-auth-ui/mail"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config   *authui.ConfigOptions
	bunDB    *bun.DB
	service  *auth.Service
	notifier *authui.Notifier
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	configPath := os.Getenv(authui.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config/app.yml"
	}

	cfg, err := authui.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithAuthUI(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(cfg.Server.Address)

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	app.notifier.Wait()
	_ = app.bunDB.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.Database.DSN)
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	repo := auth.NewRepositoryManager(db)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	lgr := app.GetLogger("auth")
	app.bunDB = db
	app.service = auth.NewService(repo, app.config,
		auth.WithServiceLogger(lgr),
		auth.WithActivitySink(auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
			lgr.Debug("activity", "event", string(event.EventType), "user", event.UserID, "driver", event.Driver)
			return nil
		})),
	)

	return ensureAdmin(ctx, app)
}

// ensureAdmin creates the administrator named by AUTH_UI_ADMIN_LOGIN when
// it does not exist yet
func ensureAdmin(ctx context.Context, app *App) error {
	login := os.Getenv(authui.EnvPrefix + "ADMIN_LOGIN")
	pwd := os.Getenv(authui.EnvPrefix + "ADMIN_PASSWORD")
	if login == "" || pwd == "" {
		return nil
	}

	if _, err := app.service.GetUserByLogin(ctx, login); err == nil {
		return nil
	} else if !auth.IsUserNotFound(err) {
		return err
	}

	_, err := app.service.CreateUser(ctx, &auth.User{
		Login:     login,
		FirstName: "Admin",
		Roles:     []string{auth.RoleUser, auth.RoleAdmin},
		Status:    auth.UserStatusActive,
	}, pwd)
	if err != nil {
		return err
	}

	app.GetLogger("app").Info("administrator created", "login", login)
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return err
	}

	engine := django.NewFileSystem(http.FS(views), ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))
	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	app.srv = srv
	return nil
}

func WithAuthUI(ctx context.Context, app *App) error {
	cfg := app.config

	settings := authui.NewSettings(authui.SettingsValues{
		SignUpEnabled: cfg.GetSignUpEnabled(),
		UIDriver:      cfg.GetDefaultDriver(),
	}, cfg.UI.SettingsFile)
	if err := settings.Load(); err != nil {
		return err
	}

	registry := authui.NewRegistry(
		authui.WithRegistryBasePath(cfg.GetBasePath()),
		authui.WithDefaultDriver(settings.UIDriver),
	)
	registry.MustRegister(password.New(password.WithFieldChecker(app.service)))

	urls := authui.NewURLs(cfg.GetBasePath(), registry)

	var sender mail.Sender = mail.LogSender{Logger: app.GetLogger("mail")}
	if cfg.Mail.Enabled() {
		sender = mail.NewSMTPSender(cfg.Mail)
	}

	app.notifier = authui.NewNotifier(app.service, urls, cfg, sender,
		authui.WithNotifierLogger(app.GetLogger("auth_ui:mail")),
	)
	authui.RegisterEventHandlers(app.service, app.notifier)

	controller := authui.NewController(app.service, registry, cfg,
		authui.WithControllerLogger(app.GetLogger("auth_ui")),
		authui.WithSettings(settings),
		authui.WithNotifier(app.notifier),
		authui.WithDebug(os.Getenv("APP_ENV") != "production"),
	)

	r := app.srv.Router()
	r.Use(controller.CurrentUser())

	r.Get("/", func(ctx router.Context) error {
		data := authui.TemplateHelpersWithRouter(ctx, urls)
		data["title"] = "Home"
		return ctx.Render("index", data)
	})

	r.Get("/robots.txt", func(ctx router.Context) error {
		var b strings.Builder
		b.WriteString("User-agent: *\n")
		for _, p := range authui.RobotsDisallow(urls) {
			b.WriteString("Disallow: " + p + "\n")
		}
		ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
		return ctx.SendString(b.String())
	})

	authui.RegisterRoutes(r, controller)

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
