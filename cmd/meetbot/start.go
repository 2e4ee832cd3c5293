package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"meetbot/internal/attendance"
	"meetbot/internal/botlog"
	"meetbot/internal/config"
	"meetbot/internal/metrics"
	"meetbot/internal/notify"
	"meetbot/internal/scheduler"
	"meetbot/internal/session"
	"meetbot/internal/timetable"
)

func NewStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Sign in to Teams and attend timetabled meetings until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), a)
		},
	}
}

func runStart(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, shutdownSignals()...)
	defer stop()

	entries, err := loadEntries(ctx, a)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No timetable found. Please add classes first.")
		return nil
	}
	loc, err := a.cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	sink, shutdownMetrics := startMetrics(a.cfg.Metrics, a.log)
	defer shutdownMetrics()

	notifier := buildNotifier(a.cfg.Notify, a.log, sink)

	headless := a.cfg.Session.Headless != nil && *a.cfg.Session.Headless
	page, err := session.NewChromePage(session.ChromeOptions{
		Headless:    headless,
		UserDataDir: a.cfg.Session.UserDataDir,
		ExecPath:    a.cfg.Session.ChromePath,
	})
	if err != nil {
		return err
	}
	teams, err := session.NewTeams(page, session.TeamsOptions{
		URL:         a.cfg.Session.URL,
		LoginHost:   a.cfg.Session.LoginHost,
		Credentials: a.cfg.Session.Credentials(),
		Selectors:   a.cfg.Session.Selectors,
		Timeouts:    a.cfg.Session.Timeouts.Resolve(),
		Logger:      a.log,
	})
	if err != nil {
		_ = page.Close()
		return err
	}
	defer func() {
		if err := teams.Close(); err != nil {
			a.log.Warnf("close browser: %v", err)
		}
	}()

	a.log.Infof("signing in to %s", a.cfg.Session.URL)
	if err := teams.EnsureAuthenticated(context.WithoutCancel(ctx), 0); err != nil {
		return &codedError{code: exitAuth, err: err}
	}

	machine, err := attendance.New(attendance.Options{
		Session:  teams,
		Notifier: notifier,
		Metrics:  sink,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}

	ledger := openLedger(a.cfg.Scheduler, a.log)
	defer ledger.Close()

	sched, err := scheduler.New(entries, machine, scheduler.Options{
		PollInterval: a.cfg.Scheduler.Poll(),
		LateGrace:    a.cfg.Scheduler.Grace(),
		Location:     loc,
		Ledger:       ledger,
		RunLog:       a.cfg.Scheduler.RunLog,
		Logger:       a.log,
		Metrics:      sink,
	})
	if err != nil {
		return err
	}
	for _, t := range sched.Triggers() {
		e := t.Entry
		fmt.Fprintf(a.out, "Scheduled meeting '%s' in Team '%s' on %s at %s (next %s)\n",
			e.Meeting, e.Team, e.Day.Title(), e.Start, t.Next.Format("2006-01-02"))
	}
	fmt.Fprintln(a.out, "Bot started. Waiting for scheduled meetings...")

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, attendance.ErrFatal) {
			return &codedError{code: exitAuth, err: err}
		}
		return err
	}
	fmt.Fprintln(a.out, "Bot stopped by user.")
	return nil
}

func loadEntries(ctx context.Context, a *app) ([]timetable.Entry, error) {
	if !timetable.Exists(a.cfg.Timetable.DBPath) {
		return nil, nil
	}
	store, err := timetable.OpenSQLite(a.cfg.Timetable.DBPath, a.log)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.List(ctx)
}

// startMetrics serves /metrics when a listen address is configured and
// returns the sink the bot records into.
func startMetrics(cfg config.MetricsConfig, log *botlog.Logger) (metrics.Sink, func()) {
	addr := strings.TrimSpace(cfg.Listen)
	if addr == "" {
		return metrics.NewNoopSink(), func() {}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := metrics.NewPrometheusSink(reg, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on %s/metrics", addr)

	return sink, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func buildNotifier(cfg config.NotifyConfig, log *botlog.Logger, sink metrics.Sink) notify.Sink {
	var sinks notify.Multi
	if cfg.Discord.Active() {
		sinks = append(sinks, notify.NewDiscordSink(notify.DiscordOptions{
			WebhookURL: cfg.Discord.WebhookURL,
			Timeout:    cfg.Discord.RequestTimeout(),
			Logger:     log,
			Metrics:    sink,
		}))
	}
	if cfg.Email.Active() {
		email, err := notify.NewEmailSink(notify.EmailOptions{
			SMTP:     cfg.Email.SMTP,
			From:     cfg.Email.From,
			Password: cfg.Email.Password,
			To:       cfg.Email.To,
			Logger:   log,
			Metrics:  sink,
		})
		if err != nil {
			log.Warnf("email notifications disabled: %v", err)
		} else {
			sinks = append(sinks, email)
		}
	}
	if len(sinks) == 0 {
		log.Infof("no notification channel configured, outcomes are only logged")
		return notify.LogSink{Log: log}
	}
	return sinks
}

func openLedger(cfg config.SchedulerConfig, log *botlog.Logger) scheduler.Ledger {
	url := strings.TrimSpace(cfg.RedisURL)
	if url == "" {
		return scheduler.NewMemoryLedger(scheduler.DefaultClaimTTL)
	}
	ledger, err := scheduler.NewRedisLedger(url, cfg.RedisPrefix, scheduler.DefaultClaimTTL)
	if err != nil {
		log.Warnf("redis occurrence ledger unavailable, using memory: %v", err)
		return scheduler.NewMemoryLedger(scheduler.DefaultClaimTTL)
	}
	log.Infof("claiming occurrences in redis")
	return ledger
}
