// Command miner is the entry point for the Twitch drops miner. It loads
// the deployment config and user settings, acquires the single-instance
// lock, logs in, and runs the miner until exit or a reload is requested.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/kethal/twitch-drops-go/internal/auth"
	"github.com/kethal/twitch-drops-go/internal/chat"
	"github.com/kethal/twitch-drops-go/internal/config"
	"github.com/kethal/twitch-drops-go/internal/gql"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/miner"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/notify"
	"github.com/kethal/twitch-drops-go/internal/server"
	"github.com/kethal/twitch-drops-go/internal/twitch"
	"github.com/kethal/twitch-drops-go/internal/ui"
	"github.com/kethal/twitch-drops-go/internal/utils"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Exit codes: 1 general failure, 3 another instance holds the lock,
// 4 the settings file could not be loaded.
const (
	exitFailure  = 1
	exitLockHeld = 3
	exitSettings = 4
)

// verbosity counts repeated -v occurrences.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) Set(string) error { *v++; return nil }
func (v *verbosity) IsBoolFlag() bool { return true }

func main() {
	var verbose verbosity
	configPath := flag.String("config", config.DefaultPath, "Path to the config file")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	logToFile := flag.Bool("log", false, "Also write logs to a file")
	noColor := flag.Bool("no-color", false, "Disable colored output (overrides TTY detection)")
	debugWS := flag.Bool("debug-ws", false, "Log raw websocket frames at DEBUG level")
	debugGQL := flag.Bool("debug-gql", false, "Log GQL request/response payloads at DEBUG level")
	tray := flag.Bool("tray", false, "Start minimized to the system tray (no effect in this build)")
	flag.Var(&verbose, "v", "Increase log verbosity (repeatable)")
	flag.Parse()

	if *showVersion {
		fmt.Println("twitch-drops-miner " + version)
		return
	}

	// Secrets can live in a .env file next to the binary.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(exitFailure)
	}

	colored := !*noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""

	logCfg := logger.Config{
		Level:     logger.LevelFromVerbosity(int(verbose)),
		FileLevel: logger.LevelFromVerbosity(int(verbose)),
		Colored:   colored,
	}
	if *logToFile {
		logCfg.LogDir = cfg.LogDir
		if logCfg.LogDir == "" {
			logCfg.LogDir = "logs"
		}
	}
	log, err := logger.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(exitFailure)
	}

	console := ui.NewConsole()
	console.Banner(version)
	if *tray {
		log.Warn("This build has no tray, running in the foreground")
	}

	lock, err := utils.AcquireLock(cfg.LockFile)
	if err != nil {
		log.Error("Another instance is already running", "error", err)
		os.Exit(exitLockHeld)
	}
	defer lock.Release()

	settings := model.NewSettingsStore(cfg.SettingsFile)
	if err := settings.Load(); err != nil {
		log.Error("Failed to load settings", "file", cfg.SettingsFile, "error", err)
		lock.Release()
		os.Exit(exitSettings)
	}
	settings.ApplyEnv()

	if cfg.OperationsFile != "" {
		if err := gql.LoadOperationOverrides(cfg.OperationsFile); err != nil {
			log.Warn("Failed to load operation overrides", "file", cfg.OperationsFile, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("Received shutdown signal", "signal", sig.String())
		cancel()

		time.AfterFunc(30*time.Second, func() {
			log.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(exitFailure)
		})
	}()

	proxyURL := settings.Get().Proxy
	authenticator := auth.NewAuthenticator(cfg.CookiesFile, proxyURL, console, log)
	gqlClient := gql.NewClient(authenticator, func() bool { return ctx.Err() != nil }, proxyURL, log)
	gqlClient.SetDebug(*debugGQL)
	api := twitch.NewClient(authenticator, gqlClient, log)

	dispatcher := notify.NewDispatcher(cfg.Notifications, log)

	// Log in up front: the chat manager needs the login name before the
	// miner starts, and a bad token should fail fast.
	if err := authenticator.Validate(ctx); err != nil {
		log.Error("Login failed", "error", err)
		lock.Release()
		os.Exit(exitFailure)
	}

	code := run(ctx, cfg, settings, authenticator, api, dispatcher, log, *debugWS)

	authenticator.SaveCookies()
	if err := settings.Save(); err != nil {
		log.Warn("Failed to save settings", "error", err)
	}
	lock.Release()
	os.Exit(code)
}

// run owns the reload loop: each iteration builds a fresh miner over the
// shared session and runs it until exit, error, or a reload request.
func run(
	ctx context.Context,
	cfg *config.Config,
	settings *model.SettingsStore,
	authenticator *auth.Authenticator,
	api twitch.API,
	dispatcher *notify.Dispatcher,
	log *logger.Logger,
	debugWS bool,
) int {
	for {
		m := miner.New(settings, authenticator, api, log)
		m.Pool().SetDebug(debugWS)
		m.SetHealthcheckPath(cfg.HealthcheckFile)
		if dispatcher.HasNotifiers() {
			m.SetNotify(dispatcher)
		}
		if cfg.Chat.Enabled {
			m.SetChat(chat.NewManager(authenticator.Login(), authenticator.AccessToken(), log))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return m.Run(gctx) })
		if cfg.Server.Enabled {
			srv := server.NewStatusServer(cfg.Server.Addr, m, log)
			g.Go(func() error { return srv.Run(gctx) })
		}

		err := g.Wait()
		switch {
		case errors.Is(err, model.ErrReloadRequest) && ctx.Err() == nil:
			log.Info("Reloading miner")
			continue
		case err == nil, errors.Is(err, model.ErrExitRequest),
			errors.Is(err, context.Canceled), ctx.Err() != nil:
			log.Info("Shutdown complete")
			return 0
		default:
			log.Error("Miner failed", "error", err)
			return exitFailure
		}
	}
}
