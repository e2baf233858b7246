package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Every key can also be set through the environment as
// CRATESIO_<KEY> with dashes replaced by underscores.
const (
	keyUserAgent   = "user-agent"
	keyRateLimit   = "rate-limit"
	keyBaseURL     = "base-url"
	keyRedisAddr   = "redis-addr"
	keyRedisPrefix = "redis-prefix"
	keyLogLevel    = "log-level"
	keyLogPretty   = "log-pretty"
	keyMetricsAddr = "metrics-addr"
)

const envPrefix = "CRATESIO"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// mustBindPFlag binds key to flag and panics if the binding fails.
func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func bindGlobalFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.String(keyUserAgent, "", "User-Agent sent with every request, e.g. \"my_bot (help@my_bot.com)\" (required)")
	mustBindPFlag(v, keyUserAgent, flags.Lookup(keyUserAgent))

	flags.Duration(keyRateLimit, defaultRateLimit, "minimum interval between request completions")
	mustBindPFlag(v, keyRateLimit, flags.Lookup(keyRateLimit))

	flags.String(keyBaseURL, "", "API base URL")
	mustBindPFlag(v, keyBaseURL, flags.Lookup(keyBaseURL))
	_ = flags.MarkHidden(keyBaseURL)

	flags.String(keyRedisAddr, "", "Redis address; when set the rate limit is shared by every process using it")
	mustBindPFlag(v, keyRedisAddr, flags.Lookup(keyRedisAddr))

	flags.String(keyRedisPrefix, "", "key prefix for the shared rate limit in Redis")
	mustBindPFlag(v, keyRedisPrefix, flags.Lookup(keyRedisPrefix))

	flags.String(keyLogLevel, "warn", "log level (debug, info, warn, error, off)")
	mustBindPFlag(v, keyLogLevel, flags.Lookup(keyLogLevel))

	flags.Bool(keyLogPretty, false, "human readable log output")
	mustBindPFlag(v, keyLogPretty, flags.Lookup(keyLogPretty))

	flags.String(keyMetricsAddr, "", "serve Prometheus metrics on this address while the command runs")
	mustBindPFlag(v, keyMetricsAddr, flags.Lookup(keyMetricsAddr))
}
