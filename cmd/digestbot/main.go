// DigestBot: daily news digest Telegram bot
//
// Usage:
//
//	digestbot serve     # run the bot: /start subscriptions + daily delivery
//	digestbot fetch     # print the current digest from the first healthy mirror
//	digestbot push      # fetch and relay to the secondary sinks only
//	digestbot version   # show version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/digestbot/internal/digestbot/bot"
	"github.com/RobinCoderZhao/digestbot/internal/digestbot/config"
	"github.com/RobinCoderZhao/digestbot/internal/digestbot/metrics"
	"github.com/RobinCoderZhao/digestbot/internal/digestbot/publisher"
	"github.com/RobinCoderZhao/digestbot/internal/digestbot/scheduler"
	"github.com/RobinCoderZhao/digestbot/internal/digestbot/sources"
	"github.com/RobinCoderZhao/digestbot/internal/digestbot/subscribers"
	pkgconfig "github.com/RobinCoderZhao/digestbot/pkg/config"
	"github.com/RobinCoderZhao/digestbot/pkg/httpx"
	"github.com/RobinCoderZhao/digestbot/pkg/notify"
)

var version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "digestbot",
		Short:         "Daily news digest bot for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "digestbot.yaml", "config file (optional)")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(fetchCmd(&cfgPath))
	rootCmd.AddCommand(pushCmd(&cfgPath))
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the daily schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, runNow)
		},
	}

	cmd.Flags().BoolVar(&runNow, "now", false, "run one delivery cycle immediately on startup")
	return cmd
}

func fetchCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Print the current digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			retriever, err := newRetriever(cfg)
			if err != nil {
				return err
			}
			text, err := retriever.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func pushCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Fetch the digest and send it to the relay sinks only",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			retriever, err := newRetriever(cfg)
			if err != nil {
				return err
			}
			dispatcher, err := newRelay(cfg, nil)
			if err != nil {
				return err
			}
			if len(dispatcher.Channels()) == 0 {
				return fmt.Errorf("no relay sink configured (set relay.push.token, relay.webhook.url or relay.email)")
			}

			// Relay-only cycle: no chat subscribers.
			pub := publisher.NewPublisher(retriever, dispatcher,
				publisher.NewBroadcaster(nil, subscribers.NewRegistry()), cfg.Relay.TitleLabel)
			return pub.Run(cmd.Context())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "digestbot %s\n", version)
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	if err := pkgconfig.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setupLogger(cfg config.Config) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func newRetriever(cfg config.Config) (*sources.Retriever, error) {
	client, err := httpx.NewClient(cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	return sources.NewRetriever(client, cfg.Mirrors...)
}

// newRelay registers every configured secondary sink. tg may be nil.
func newRelay(cfg config.Config, tg *notify.TelegramNotifier) (*notify.Dispatcher, error) {
	client, err := httpx.NewClient(cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	dispatcher := notify.NewDispatcher()
	if cfg.PushEnabled() {
		dispatcher.Register(notify.NewPushNotifier(cfg.Relay.Push, client))
	}
	if cfg.WebhookEnabled() {
		dispatcher.Register(notify.NewWebhookNotifier(cfg.Relay.Webhook, client))
	}
	if cfg.EmailEnabled() {
		dispatcher.Register(notify.NewEmailNotifier(cfg.Relay.Email))
	}
	if tg != nil && cfg.Telegram.ChannelID != "" {
		dispatcher.Register(tg)
	}
	return dispatcher, nil
}

func runServe(ctx context.Context, cfg config.Config, runNow bool) error {
	at, err := cfg.DailyTime()
	if err != nil {
		return err
	}

	retriever, err := newRetriever(cfg)
	if err != nil {
		return err
	}

	// Long polling outlives any request timeout, so the gateway gets its own client.
	pollHTTP := cfg.HTTP
	pollHTTP.Timeout = 0
	pollClient, err := httpx.NewClient(pollHTTP)
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	tg, err := notify.NewTelegramNotifier(cfg.Telegram, pollClient)
	if err != nil {
		return err
	}
	slog.Info("authorized on telegram", "username", tg.Username())

	dispatcher, err := newRelay(cfg, tg)
	if err != nil {
		return err
	}

	subs := subscribers.NewRegistry()
	broadcaster := publisher.NewBroadcaster(tg, subs)
	broadcaster.SetRateLimit(cfg.Bot.SendRate, cfg.Bot.SendBurst)

	var relay publisher.Relay
	if len(dispatcher.Channels()) > 0 {
		relay = dispatcher
	}
	pub := publisher.NewPublisher(retriever, relay, broadcaster, cfg.Relay.TitleLabel)

	var ready atomic.Bool
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)
		m.WatchSubscribers(subs.Len)
		retriever.SetObserver(m)
		broadcaster.SetObserver(m)
		pub.SetObserver(m)

		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, metrics.NewHandler(reg, ready.Load)); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	sched := scheduler.NewScheduler()
	sched.Add(scheduler.Job{Name: "daily-digest", Fn: pub.Run})

	slog.Info("starting digestbot",
		"version", version,
		"mirrors", len(cfg.Mirrors),
		"at", at.String(),
		"timezone", at.Location.String(),
		"relay", dispatcher.Channels(),
	)

	if runNow {
		if err := sched.RunOnce(ctx); err != nil {
			slog.Warn("startup delivery failed", "error", err)
		}
	}

	go sched.StartDaily(ctx, at)
	go func() {
		<-ctx.Done()
		tg.StopUpdates()
	}()

	handler := bot.NewHandler(tg, subs, retriever, bot.WithEcho(cfg.Bot.Echo))
	updates := tg.Updates()
	ready.Store(true)
	handler.Run(ctx, updates)

	sched.Stop()
	slog.Info("digestbot stopped")
	return nil
}
