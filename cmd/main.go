package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/golang-cz/devslog"
	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/apiclient"
	"github.com/siahsang/beatpost/internal/auth"
	"github.com/siahsang/beatpost/internal/config"
	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/internal/gate"
	"github.com/siahsang/beatpost/internal/imaging"
	"github.com/siahsang/beatpost/internal/navigation"
	"github.com/siahsang/beatpost/internal/notify"
	"github.com/siahsang/beatpost/internal/session"
	"github.com/siahsang/beatpost/internal/social"
	"github.com/siahsang/beatpost/internal/telemetry"
	"github.com/siahsang/beatpost/internal/utils/collectionutils"
)

const notificationLimit = 50

type application struct {
	config    config.Config
	logger    *slog.Logger
	session   session.Store
	api       *apiclient.Client
	auth      *auth.Manager
	gate      *gate.Gate
	navigator *navigation.Navigator
	notifier  *notify.Queue
	social    *social.Controller

	// Views that actions act upon, kept between requests.
	posts    *collectionutils.SafeMap[string, *social.PostView]
	profiles *collectionutils.SafeMap[string, *social.ProfileView]
	mine     *social.MyProfileView

	wg sync.WaitGroup
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "beatpost:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	if command == "grayscale" {
		return runGrayscale(args, stdout)
	}

	if err := config.LoadDotenv(".env"); err != nil {
		return err
	}
	flags := flag.NewFlagSet("beatpost "+command, flag.ContinueOnError)
	flags.SetOutput(stderr)
	var credentials loginFlags
	if command == "login" {
		credentials.register(flags)
	}
	cfg, err := config.Parse(flags, args)
	if err != nil {
		return err
	}

	logger, err := configLogger(cfg, stderr)
	if err != nil {
		return err
	}

	if cfg.FakeBackend {
		stop, err := startFakeBackend(ctx, &cfg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if cfg.TracingEnabled() {
		shutdown, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.OtelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("flushing traces failed", slog.String("stack", xerrors.Sprint(err)))
			}
		}()
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	switch command {
	case "serve":
		return app.serve(ctx)
	case "login":
		return app.loginCommand(ctx, credentials, stdout)
	case "logout":
		return app.logoutCommand(ctx, stdout)
	case "whoami":
		return app.whoamiCommand(ctx, stdout)
	}
	return xerrors.Newf("unknown command %q, expected serve, login, logout, whoami or grayscale", command)
}

func configLogger(cfg config.Config, out io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(out, options)), nil
	}
	handler := devslog.NewHandler(
		out, &devslog.Options{
			HandlerOptions:  options,
			NewLineAfterLog: false,
		})
	return slog.New(handler), nil
}

// newApplication wires one client instance: a credential slot, the API client
// reading it, and the auth manager and controllers on top.
func newApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	store, err := session.Open(ctx, cfg.SessionStore, session.Options{Logger: logger, RedisPrefix: cfg.RedisPrefix})
	if err != nil {
		return nil, err
	}

	api, err := apiclient.New(store, apiclient.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifier := notify.NewQueue(notificationLimit)
	manager := auth.NewManager(api, store, notifier, logger)
	navigator := navigation.NewNavigator(logger)

	api.OnUnauthorized(func(ctx context.Context) {
		navigator.ForceLogin(ctx)
		manager.Invalidate()
	})

	return &application{
		config:    cfg,
		logger:    logger,
		session:   store,
		api:       api,
		auth:      manager,
		gate:      gate.New(manager, cfg.GateTimeout),
		navigator: navigator,
		notifier:  notifier,
		social:    social.NewController(api, manager, notifier, imaging.PrepareUpload, logger),
		posts:     collectionutils.New[string, *social.PostView](),
		profiles:  collectionutils.New[string, *social.ProfileView](),
		mine:      social.NewMyProfileView(filter.DefaultUserPostsQuery()),
	}, nil
}

func (app *application) close() {
	app.wg.Wait()
	if err := app.session.Close(); err != nil {
		app.logger.Error("closing session store failed", slog.String("stack", xerrors.Sprint(err)))
	}
}
