package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"go-watchdog/internal/alert"
	"go-watchdog/internal/bus"
	"go-watchdog/internal/config"
	"go-watchdog/internal/heartbeat"
	"go-watchdog/internal/probe"
	"go-watchdog/internal/scanner"
	"go-watchdog/internal/server"
	"go-watchdog/internal/store"
	"go-watchdog/internal/tui"
)

func main() {
	configPath := flag.String("config", "watchdog.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	journal := scanner.NewJournal()

	logger, closeLog, err := newLogger(cfg.Logging, journal, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, journal, interactive); err != nil {
		logger.Error("watchdog stopped", "err", err)
		closeLog()
		os.Exit(1)
	}
}

// newLogger writes to the journal, the optional log file and, when no
// dashboard owns the terminal, to stderr.
func newLogger(cfg config.LoggingConfig, journal io.Writer, interactive bool) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging level: %w", err)
	}

	writers := []io.Writer{journal}
	if !interactive {
		writers = append(writers, os.Stderr)
	}
	closeLog := func() {}
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closeLog = func() { _ = f.Close() }
	}

	logger := log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		ReportTimestamp: true,
		Prefix:          "watchdog",
		Level:           level,
	})
	return logger, closeLog, nil
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, journal *scanner.Journal, interactive bool) error {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := seedWatchdogs(ctx, st, cfg.Watchdogs, cfg.Alert.Thresholds, logger); err != nil {
		return err
	}

	interval := cfg.Scanner.ScanInterval()
	tracker := heartbeat.New(interval)
	prober := probe.New(interval/2, cfg.Scanner.UserAgent, cfg.Scanner.ProbeConcurrency)

	var mailer alert.Mailer = alert.DiscardMailer{}
	if cfg.Alert.Email.Enabled {
		mailer = alert.NewSMTPMailer(cfg.Alert.Email)
	}

	var publisher scanner.Publisher
	if cfg.NATS.URL != "" {
		nc, err := bus.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		publisher = nc
		logger.Info("publishing events", "nats", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	notifier := scanner.NewNotifier(mailer, alert.NewChannels(cfg.Alert.Channels), publisher, logger.WithPrefix("notify"))
	scan := scanner.New(st, prober, tracker, notifier, logger.WithPrefix("scanner"), scanner.Options{
		Interval: interval,
		Margin:   cfg.Scanner.StalenessMargin,
	})

	srv := server.New(cfg.Server, scan, st, tracker, logger.WithPrefix("http"))
	scan.OnReport(srv.Broadcast)
	if publisher != nil {
		scan.OnReport(func(r scanner.Report) {
			if err := publisher.Publish("cycle", r); err != nil {
				logger.Warn("cycle publish failed", "cycle", r.Cycle, "err", err)
			}
		})
	}

	deps := tui.Deps{Store: st, Engine: scan, Journal: journal}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scan.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if cfg.SSH.Enabled {
		g.Go(func() error {
			return serveSSH(ctx, cfg.SSH, deps, logger.WithPrefix("ssh"))
		})
	}

	if interactive {
		p := tea.NewProgram(tui.InitialModel(deps), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("dashboard failed", "err", err)
		}
		cancel()
	} else {
		logger.Info("running in headless mode")
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
