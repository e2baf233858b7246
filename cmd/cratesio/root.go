package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/cratesio-client/pkg/client"
	"github.com/Sternrassler/cratesio-client/pkg/logging"
	"github.com/Sternrassler/cratesio-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultRateLimit = time.Second

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	out    io.Writer
	logger zerolog.Logger

	client      *client.Client
	redis       *redis.Client
	metrics     *http.Server
	metricsAddr string
}

// run executes one invocation with args and releases everything it opened.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{v: newViper(), out: out, logger: zerolog.Nop()}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cratesio",
		Short: "Query the crates.io API",
		Long: `Query the crates.io API and print the results as JSON.

Requests are sent one at a time and spaced by --rate-limit, as the crates.io
crawler policy asks. Every flag can also be set as CRATESIO_<FLAG>, for
example CRATESIO_USER_AGENT.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	bindGlobalFlags(a.v, root.PersistentFlags())

	root.AddCommand(
		a.summaryCommand(),
		a.crateCommand(),
		a.fullCommand(),
		a.cratesCommand(),
		a.downloadsCommand(),
		a.ownersCommand(),
		a.authorsCommand(),
		a.dependenciesCommand(),
		a.reverseDependenciesCommand(),
		a.userCommand(),
	)
	return root
}

// setup configures logging, the client and the optional metrics listener.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level := a.v.GetString(keyLogLevel)
	if _, err := logging.ParseLevel(level); err != nil {
		return err
	}
	a.logger = logging.Setup(logging.Config{
		Level:  logging.LogLevel(level),
		Pretty: a.v.GetBool(keyLogPretty),
		Output: cmd.ErrOrStderr(),
	})

	cfg := client.DefaultConfig(a.v.GetString(keyUserAgent))
	cfg.RateLimit = a.v.GetDuration(keyRateLimit)
	if baseURL := a.v.GetString(keyBaseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if addr := a.v.GetString(keyRedisAddr); addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: addr})
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", addr, err)
		}
		a.logger.Info().Str("addr", addr).Msg("Sharing rate limit through Redis")
		cfg.Redis = a.redis
		cfg.RedisKeyPrefix = a.v.GetString(keyRedisPrefix)
	}

	clientLogger := a.logger.With().Str("component", "cratesio-client").Logger()
	cfg.Logger = &clientLogger

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	a.client = c

	if addr := a.v.GetString(keyMetricsAddr); addr != "" {
		if err := a.serveMetrics(addr); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsAddr = ln.Addr().String()

	a.logger.Info().Str("addr", a.metricsAddr).Msg("Serving metrics")
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return nil
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// print writes v to the output as indented JSON.
func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
