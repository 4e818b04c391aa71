package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vitwit/arkpay"
	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
	"github.com/vitwit/arkpay/utils"
)

var version = "dev"

// Exit codes of the watch command.
const (
	exitCompleted   = 0
	exitAborted     = 1
	exitExpired     = 2
	exitInterrupted = 130
)

type watchFlags struct {
	recipient   string
	amount      string
	vendorField string
	currency    string
	coin        string
	network     string
	config      string
	logLevel    string
	logBackend  string
	statusAddr  string
	expires     time.Duration
	token       string
}

// exitCode is set by the command that ran.
var exitCode = exitCompleted

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitAborted)
	}
	os.Exit(exitCode)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "arkpay",
		Short:        "waits for ARK payments",
		Long:         `arkpay converts a fiat amount to ARK and watches the network until a transfer with the expected amount and vendor field arrives`,
		SilenceUsage: true,
	}
	root.AddCommand(newWatchCmd())
	return root
}

func newWatchCmd() *cobra.Command {
	f := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "watch for a single payment",
		Long:  `watch prepares a payment session, prints its lifecycle events and exits 0 on completion, 1 on abort, 2 on expiry and 130 on interrupt`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := runWatch(ctx, cmd, f)
			exitCode = code
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.recipient, "recipient", "", "address the payment is sent to")
	flags.StringVar(&f.amount, "amount", "", "fiat amount to receive")
	flags.StringVar(&f.vendorField, "vendor-field", "", "vendor field to match (generated when empty)")
	flags.StringVar(&f.currency, "currency", "USD", "fiat currency of the amount")
	flags.StringVar(&f.coin, "coin", types.CoinARK, "coin to receive")
	flags.StringVar(&f.network, "network", types.NetworkDevnet, "network to watch")
	flags.StringVar(&f.config, "config", "", "JSON config file")
	flags.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	flags.StringVar(&f.logBackend, "log-backend", "zap", "zap or logrus")
	flags.StringVar(&f.statusAddr, "status-addr", "", "address of the status server, disabled when empty")
	flags.DurationVar(&f.expires, "expires", 0, "give up after this long, never when zero")
	flags.StringVar(&f.token, "token", "uuid", "vendor field generator: uuid or xid")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

// loadConfig reads the config file when given and lets explicitly set
// flags override it.
func loadConfig(cmd *cobra.Command, f *watchFlags) (*types.GatewayConfig, error) {
	cfg := types.DefaultConfig()
	if f.config != "" {
		loaded, err := utils.LoadConfig(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if f.config == "" || changed("network") {
		cfg.Network = f.network
	}
	if f.config == "" || changed("coin") {
		cfg.Coin = f.coin
	}
	if f.config == "" || changed("currency") {
		cfg.Currency = f.currency
	}
	if f.config == "" || changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.config == "" || changed("log-backend") {
		cfg.LogBackend = f.logBackend
	}
	if f.config == "" || changed("token") {
		cfg.VendorFieldGenerator = f.token
	}
	if changed("expires") {
		cfg.ExpiresAfter = types.Duration{Duration: f.expires}
	}
	if changed("status-addr") {
		cfg.MetricsAddr = f.statusAddr
		cfg.EnableMetrics = f.statusAddr != ""
	}
	return cfg, utils.ValidateConfig(cfg)
}

func runWatch(ctx context.Context, cmd *cobra.Command, f *watchFlags) (int, error) {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return exitAborted, err
	}

	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return exitAborted, fmt.Errorf("invalid amount %q: %w", f.amount, err)
	}

	log := logger.New(cfg.LogBackend, cfg.LogLevel)
	defer logger.Sync(log)
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return exitAborted, err
	}

	gw, err := arkpay.NewFromConfig(cfg, arkpay.WithLogger(log), arkpay.WithMetrics(recorder))
	if err != nil {
		return exitAborted, err
	}

	gw.Recipient(f.recipient).Amount(amount)
	if f.vendorField != "" {
		gw.VendorField(f.vendorField)
	}
	gw.OnAny(func(ev arkpay.Event) { printEvent(out, ev) })

	if cfg.EnableMetrics && cfg.MetricsAddr != "" {
		srv := newStatusServer(cfg.MetricsAddr, gw, registry, log)
		go srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := gw.Start(ctx); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return exitInterrupted, nil
		case types.IsCode(err, types.ErrSessionAborted):
			return exitAborted, nil
		}
		return exitAborted, err
	}

	select {
	case <-gw.Done():
	case <-ctx.Done():
		gw.Stop()
		<-gw.Done()
	}

	switch gw.State() {
	case types.StateCompleted:
		return exitCompleted, nil
	case types.StateExpired:
		return exitExpired, nil
	}
	return exitInterrupted, nil
}

func printEvent(w io.Writer, ev arkpay.Event) {
	switch ev.Kind {
	case arkpay.EventStarted, arkpay.EventExpired:
		body, _ := utils.NormalizeJSON(ev.Session)
		fmt.Fprintf(w, "%s\n%s\n", ev.Kind, body)
	case arkpay.EventCompleted:
		body, _ := utils.NormalizeJSON(ev.Transaction)
		fmt.Fprintf(w, "%s\n%s\n", ev.Kind, body)
	case arkpay.EventAborted:
		fmt.Fprintf(w, "%s: %s\n", ev.Kind, ev.Reason)
	case arkpay.EventError:
		fmt.Fprintf(w, "%s [%s]: %v\n", ev.Kind, ev.Phase, ev.Err)
	}
}
