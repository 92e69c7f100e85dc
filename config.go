package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Seednode/kollywood/games/kollywood"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	maxRounds      int
	penaltyWord    string
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	queueSize      int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxRounds < 1 {
		return fmt.Errorf("invalid max rounds (must be at least 1): %d", c.maxRounds)
	}
	if c.penaltyWord == "" || strings.IndexFunc(c.penaltyWord, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return fmt.Errorf("invalid penalty word (must be letters only): %q", c.penaltyWord)
	}
	if c.queueSize < 1 {
		return fmt.Errorf("invalid queue size (must be at least 1): %d", c.queueSize)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) registryOptions(transport kollywood.Transport) kollywood.Options {
	return kollywood.Options{
		Rules: kollywood.Rules{
			MaxRounds:   c.maxRounds,
			PenaltyWord: strings.ToUpper(c.penaltyWord),
		},
		QueueSize:   c.queueSize,
		IdleTimeout: c.sessionTimeout,
		Transport:   transport,
		Logf: func(format string, args ...any) {
			logf(c, format, args...)
		},
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("KOLLYWOOD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "kollywood",
		Short:         "A synchronous Kollywood guessing party game, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: KOLLYWOOD_BIND)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", kollywood.DefaultMaxRounds, "rounds played before the game ends (env: KOLLYWOOD_MAX_ROUNDS)")
	fs.StringVar(&cfg.penaltyWord, "penalty-word", kollywood.DefaultPenaltyWord, "word whose letters make up each strike track (env: KOLLYWOOD_PENALTY_WORD)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", time.Minute, "time before unresponsive connections are dropped (env: KOLLYWOOD_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: KOLLYWOOD_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: KOLLYWOOD_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: KOLLYWOOD_PROFILE)")
	fs.IntVar(&cfg.queueSize, "queue-size", kollywood.DefaultQueueSize, "pending events buffered per game (env: KOLLYWOOD_QUEUE_SIZE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before games nobody joined are ended (env: KOLLYWOOD_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: KOLLYWOOD_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: KOLLYWOOD_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: KOLLYWOOD_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: KOLLYWOOD_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("kollywood v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
