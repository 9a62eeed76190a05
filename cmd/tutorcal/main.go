package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"tutorcal/internal/calendar"
	"tutorcal/internal/capture"
	"tutorcal/internal/config"
	"tutorcal/internal/controller"
	"tutorcal/internal/ics"
	"tutorcal/internal/lessons"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/refresh"
	"tutorcal/internal/store"
	"tutorcal/internal/tui"
	"tutorcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	tui        bool
	capture    bool
	demo       bool
	setToken   bool
	noSandbox  bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("tutorcal starting", "version", version)

	if flags.setToken {
		if err := storeToken(); err != nil {
			appLog.Error("storing api token failed", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "token saved to the OS keyring")
		return
	}

	if !flags.demo && conf.API.Token == "" {
		if ring, err := config.OpenKeyring(); err != nil {
			appLog.Warn("keyring unavailable", "err", err.Error())
		} else {
			config.ResolveToken(conf, ring)
		}
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone; using local time", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"api", conf.API.BaseURL,
		"token_set", conf.API.Token != "",
		"refresh", conf.RefreshCron,
		"holidays_ics", conf.HolidaysICS,
		"demo", flags.demo,
		"once", flags.once,
		"tui", flags.tui,
		"capture", flags.capture,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	holidays := loadHolidays(ctx, conf, loc)
	ctrl := controller.New(store.New(newRemote(conf, loc, flags.demo)), holidays, loc,
		controller.WithDefaultColor(conf.DefaultColor))

	if err := ctrl.Refresh(ctx); err != nil && !flags.tui {
		appLog.Warn("initial refresh failed; starting with an empty calendar", "err", err.Error())
	}

	switch {
	case flags.once:
		printMonth(os.Stdout, ctrl.View())
	case flags.tui:
		if err := runTUI(ctrl); err != nil {
			appLog.Error("tui exited with error", err)
			os.Exit(1)
		}
	case flags.capture:
		if err := runCapture(ctx, conf, ctrl, flags.noSandbox); err != nil {
			appLog.Error("capture failed", err)
			os.Exit(1)
		}
	default:
		if err := runServer(ctx, conf, ctrl, loc, flags.noSandbox); err != nil {
			appLog.Error("server exited with error", err)
			os.Exit(1)
		}
	}

	appLog.Info("tutorcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./tutorcal.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file loaded before the config")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the month grid and exit")
	flag.BoolVar(&cfg.tui, "tui", false, "Run the terminal UI")
	flag.BoolVar(&cfg.capture, "capture", false, "Render /calendar to PNG (capture.output) and exit")
	flag.BoolVar(&cfg.demo, "demo", false, "Use an in-memory backend seeded with sample lessons")
	flag.BoolVar(&cfg.setToken, "set-token", false, "Prompt for the API token and store it in the OS keyring")
	flag.BoolVar(&cfg.noSandbox, "no-sandbox", false, "Disable the Chromium sandbox for capture (containers)")

	flag.Parse()

	return cfg
}

func newRemote(conf *config.Config, loc *time.Location, demo bool) store.Remote {
	if demo {
		return store.NewMemory(store.SampleLessons(loc)...)
	}
	loginURL := conf.API.LoginURL
	return lessons.NewClient(lessons.Options{
		BaseURL:  conf.API.BaseURL,
		Token:    conf.API.Token,
		Timeout:  conf.Timeout(),
		Location: loc,
		OnUnauthorized: func() {
			appLog.Warn("api token rejected; log in again", "login_url", loginURL)
		},
	})
}

func loadHolidays(ctx context.Context, conf *config.Config, loc *time.Location) calendar.HolidayTable {
	base := calendar.JapanHolidays2025()
	if conf.HolidaysICS == "" {
		return base
	}
	extra, err := ics.LoadHolidays(ctx, ics.NewFetcher("", conf.Timeout()), conf.HolidaysICS, loc)
	if err != nil {
		appLog.Error("loading holiday calendar failed; using built-in table", err, "source", conf.HolidaysICS)
		return base
	}
	return base.Merge(extra)
}

func storeToken() error {
	ring, err := config.OpenKeyring()
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stderr, "API token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	tok := strings.TrimSpace(string(raw))
	if tok == "" {
		return errors.New("empty token")
	}
	return ring.Set(tok)
}

func runTUI(ctrl *controller.Controller) error {
	// Log lines would tear the alt screen; send them to a file instead.
	f, err := os.OpenFile("tutorcal-tui.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err == nil {
		appLog.SetOutput(f)
		defer func() {
			appLog.SetOutput(os.Stderr)
			f.Close()
		}()
	}
	_, err = tea.NewProgram(tui.NewModel(ctrl), tea.WithAltScreen()).Run()
	return err
}

// selfURL is the loopback URL of our own HTTP server.
func selfURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func captureFunc(conf *config.Config, noSandbox bool) web.CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		return capture.CapturePNG(ctx, capture.Options{
			URL:       selfURL(conf.Listen) + "/calendar",
			Width:     conf.Capture.Width,
			Height:    conf.Capture.Height,
			NoSandbox: noSandbox,
		})
	}
}

func runCapture(ctx context.Context, conf *config.Config, ctrl *controller.Controller, noSandbox bool) error {
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := web.NewServer(conf, ctrl)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	if err := waitHealthy(ctx, selfURL(conf.Listen)); err != nil {
		return err
	}

	_, err := capture.CapturePNG(ctx, capture.Options{
		URL:        selfURL(conf.Listen) + "/calendar",
		OutputPath: conf.Capture.Output,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
		NoSandbox:  noSandbox,
	})
	if err != nil {
		return err
	}
	appLog.Info("preview written", "path", conf.Capture.Output)

	stop()
	return <-errCh
}

func runServer(ctx context.Context, conf *config.Config, ctrl *controller.Controller, loc *time.Location, noSandbox bool) error {
	srv := web.NewServer(conf, ctrl, web.WithCapture(captureFunc(conf, noSandbox)))

	sched, err := refresh.New(conf.RefreshCron, loc, conf.Timeout()*2, srv.Refresh)
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()
	appLog.Info("next scheduled refresh", "at", sched.Next().Format(time.RFC3339))

	return srv.ListenAndServe(ctx)
}
