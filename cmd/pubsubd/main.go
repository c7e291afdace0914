// Command pubsubd runs the pub/sub fabric as a standalone process for
// local development and integration testing: a single node bootstraps its
// topology per the configured role, runs its fan-out proxy and reaper, and
// blocks until it receives a termination signal. The process does not
// itself accept publish, subscribe, poll, or unsubscribe requests from
// clients.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mongodb-labs/pubsub/internal/config"
	"github.com/mongodb-labs/pubsub/pubsub"
)

// options holds the flag-and-environment-bound values that build a
// config.Config at startup.
type options struct {
	role         string
	port         int
	peers        []string
	configAddr   string
	debug        bool
	sharded      bool
	eventsPrefix string
}

func newOptions() *options {
	return &options{
		role: "shard",
		port: 27017,
	}
}

func (o *options) toConfig() (config.Config, error) {
	var role config.Role
	switch strings.ToLower(o.role) {
	case "shard":
		role = config.RoleShard
	case "config":
		role = config.RoleConfig
	case "proxy":
		role = config.RoleProxy
	default:
		return config.Config{}, errUnknownRole(o.role)
	}

	return config.Config{
		Role:         role,
		Port:         o.port,
		Peers:        o.peers,
		ConfigAddr:   o.configAddr,
		Debug:        o.debug,
		Sharded:      o.sharded,
		EventsPrefix: o.eventsPrefix,
	}, nil
}

type errUnknownRole string

func (e errUnknownRole) Error() string {
	return "pubsubd: unknown role " + string(e) + "; want shard, config, or proxy"
}

func newRootCmd() *cobra.Command {
	opts := newOptions()

	cmd := &cobra.Command{
		Use:   "pubsubd",
		Short: "Run a pub/sub fabric node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.toConfig()
			if err != nil {
				return err
			}

			if cfg.Debug {
				log.SetLevel(log.DebugLevel)
			}
			log.WithField("role", cfg.Role).WithField("port", cfg.Port).Info("pubsubd: starting")

			p := pubsub.New(cfg)
			defer p.Close()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			log.Info("pubsubd: shutting down")
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.role, "role", opts.role, "node role: shard, config, or proxy")
	flags.IntVar(&opts.port, "port", opts.port, "base port; pub/sub derives its own endpoints from it")
	flags.StringSliceVar(&opts.peers, "peers", nil, "configuration node host:port peers (proxy role only)")
	flags.StringVar(&opts.configAddr, "config-addr", "", "configuration node host:port (sharded shard role only)")
	flags.BoolVar(&opts.debug, "debug", false, "collapse the reaper window and poll cap to 100ms")
	flags.BoolVar(&opts.sharded, "sharded", false, "enable forwarding of $events publications to the configuration node")
	flags.StringVar(&opts.eventsPrefix, "events-prefix", "", "reserved channel prefix forwarded to the configuration node (default $events)")

	v := viper.New()
	v.SetEnvPrefix("pubsubd")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		log.WithError(err).Fatal("pubsubd: failed to bind flags")
	}

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		// Environment variables only take effect when the operator left
		// the flag at its default; an explicit flag always wins.
		if !cmd.Flags().Changed("role") {
			opts.role = v.GetString("role")
		}
		if !cmd.Flags().Changed("port") {
			opts.port = v.GetInt("port")
		}
		if !cmd.Flags().Changed("peers") {
			opts.peers = v.GetStringSlice("peers")
		}
		if !cmd.Flags().Changed("config-addr") {
			opts.configAddr = v.GetString("config-addr")
		}
		if !cmd.Flags().Changed("debug") {
			opts.debug = v.GetBool("debug")
		}
		if !cmd.Flags().Changed("sharded") {
			opts.sharded = v.GetBool("sharded")
		}
		if !cmd.Flags().Changed("events-prefix") {
			opts.eventsPrefix = v.GetString("events-prefix")
		}
	}

	return cmd
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("pubsubd: fatal error")
	}
}
