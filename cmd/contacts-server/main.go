package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	contacts "github.com/goliatone/go-contacts"
	"github.com/goliatone/go-contacts/cmd/contacts-server/config"
	"github.com/goliatone/go-contacts/mailer"
)

type App struct {
	config   *gconfig.Container[*config.AppConfig]
	bunDB    *bun.DB
	redis    *redis.Client
	repo     contacts.RepositoryManager
	sessions *contacts.SessionManager
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) Config() *config.AppConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("contacts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.AppConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw().GetServer()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithCache(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go app.srv.Serve(app.Config().GetServer().GetAddress())

	WaitExitSignal()

	app.GetLogger("app").Info("shutting down")

	if app.redis != nil {
		app.redis.Close()
	}

	if app.bunDB != nil {
		app.bunDB.Close()
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.Config().GetPersistence()

	db, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}

	bunDB := bun.NewDB(db, sqlitedialect.New())

	if err := contacts.RunMigrations(ctx, bunDB, cfg.GetDriver()); err != nil {
		return err
	}

	app.bunDB = bunDB
	app.repo = contacts.NewRepositoryManager(bunDB)
	app.repo.MustValidate()

	return nil
}

func WithCache(ctx context.Context, app *App) error {
	cfg := app.Config().GetRedis()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to reach redis")
	}

	app.redis = client

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	authCfg := app.Config().GetAuth()

	tokens := contacts.NewTokenService(
		[]byte(authCfg.GetSigningKey()),
		authCfg.GetIssuer(),
		app.GetLogger("tokens"),
	)

	cache := contacts.NewIdentityCache(
		contacts.NewRedisCacheStore(app.redis),
		contacts.WithIdentityCacheTTL(authCfg.GetIdentityCacheTTL()),
		contacts.WithIdentityCacheLogger(app.GetLogger("cache")),
	)

	app.sessions = contacts.NewSessionManager(
		app.repo.Users(),
		tokens,
		cache,
		authCfg,
		contacts.WithSessionLogger(app.GetLogger("session")),
		contacts.WithActivitySink(contacts.LogActivitySink{Logger: app.GetLogger("activity")}),
	)

	var mail contacts.Mailer
	if smtpCfg := app.Config().GetSMTP(); smtpCfg.Enabled() {
		mail = mailer.New(mailer.Config{
			Host:     smtpCfg.Host,
			Port:     smtpCfg.GetPort(),
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			From:     smtpCfg.GetFrom(),
		})
	} else {
		mail = &mailer.LogMailer{Logger: app.GetLogger("mailer")}
	}

	signup := contacts.NewSignupHandler(app.repo, tokens, mail, authCfg, app.GetLogger("signup"))
	confirm := contacts.NewConfirmEmailHandler(app.repo, tokens, cache)
	resend := contacts.NewResendConfirmationHandler(app.repo, tokens, mail, authCfg, app.GetLogger("resend"))

	controller := contacts.NewAPIController(
		app.repo,
		app.sessions,
		signup,
		confirm,
		resend,
		contacts.WithControllerLogger(app.GetLogger("api")),
	)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	controller.RegisterRoutes(srv.Router())

	app.srv = srv

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
