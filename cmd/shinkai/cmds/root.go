// Package cmds has the commands of the shinkai command line.
package cmds

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/shinkai/pkg/api"
	"github.com/go-go-golems/shinkai/pkg/conversation"
	"github.com/go-go-golems/shinkai/pkg/settings"
	"github.com/go-go-golems/shinkai/pkg/ui"
)

// Env is what every command needs once flags, environment and config file
// have been read.
type Env struct {
	Settings *settings.Settings
	Client   *api.Client
	Registry *prometheus.Registry
	Output   string

	v             *viper.Viper
	metricsServer *http.Server
	// confirm asks the user a yes/no question.
	confirm func(query string) (bool, error)
	// isTerminal reports whether the command output goes to a terminal.
	isTerminal func() bool
}

func newEnv(v *viper.Viper) *Env {
	return &Env{
		v: v,
		confirm: func(query string) (bool, error) {
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return false, errors.New("not on a terminal, pass --yes to confirm")
			}
			return ui.ConfirmOnTTY(query)
		},
		isTerminal: func() bool {
			return isatty.IsTerminal(os.Stdout.Fd())
		},
	}
}

// NewRootCommand builds the command tree. Flags, SHINKAI_* environment
// variables and the config file are all read through v.
func NewRootCommand(v *viper.Viper) *cobra.Command {
	cmd, _ := newRootCommand(v)
	return cmd
}

func newRootCommand(v *viper.Viper) (*cobra.Command, *Env) {
	env := newEnv(v)

	rootCmd := &cobra.Command{
		Use:           "shinkai",
		Short:         "shinkai talks to a Shinkai node",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.shutdown()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (default ~/.shinkai/config.yaml)")
	pf.String(settings.KeyNodeAddress, "", "Node address (default http://127.0.0.1:9550)")
	pf.String(settings.KeyAPIToken, "", "Bearer token of the node API")
	pf.Duration(settings.KeyTimeout, api.DefaultTimeout, "Timeout of a single request")
	pf.Bool(settings.KeyAllowInsecureRemote, false, "Allow plain http to a remote node")
	pf.String(settings.KeyArchivePath, "", "Path of the local sqlite archive")
	pf.StringP("output", "o", OutputYAML, "Output format (yaml, json)")
	pf.String("metrics-addr", "", "Serve prometheus metrics on this address while the command runs")

	pf.Bool("with-caller", false, "Log caller")
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	pf.String("log-format", "text", "Log format (json, text)")
	pf.String("log-file", "", "Log file (default: stderr)")

	rootCmd.AddCommand(
		newHealthCommand(env),
		newConfigCommand(env),
		newInboxesCommand(env),
		newConversationCommand(env),
		newArchiveCommand(env),
		newAgentsCommand(env),
		newToolsCommand(env),
		newPromptsCommand(env),
		newFSCommand(env),
	)

	return rootCmd, env
}

func (e *Env) readConfig(configFile string) (*settings.Settings, error) {
	e.v.SetEnvPrefix("shinkai")
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	if configFile != "" {
		e.v.SetConfigFile(configFile)
	} else {
		e.v.SetConfigName("config")
		e.v.SetConfigType("yaml")
		e.v.AddConfigPath(".")
		e.v.AddConfigPath("$HOME/.shinkai")
		e.v.AddConfigPath("/etc/shinkai")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			e.v.AddConfigPath(xdgConfigPath + "/shinkai")
		}
	}

	err := e.v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return settings.NewSettings(), nil
	} else if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}

	log.Debug().Str("config", e.v.ConfigFileUsed()).Msg("Loaded configuration")
	return settings.LoadFile(e.v.ConfigFileUsed())
}

func (e *Env) init(cmd *cobra.Command) error {
	if err := e.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	err := initLogger(&logConfig{
		Level:      e.v.GetString("log-level"),
		LogFile:    e.v.GetString("log-file"),
		LogFormat:  e.v.GetString("log-format"),
		WithCaller: e.v.GetBool("with-caller"),
	})
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	s, err := e.readConfig(configFile)
	if err != nil {
		return err
	}
	s.Overlay(e.v)
	if err := s.Validate(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}
	e.Settings = s

	e.Output = e.v.GetString("output")
	if e.Output != OutputYAML && e.Output != OutputJSON {
		return errors.Errorf("unknown output format %q", e.Output)
	}

	e.Registry = prometheus.NewRegistry()
	e.Registry.MustRegister(collectors.NewGoCollector())

	options := append(s.Node.ClientOptions(), api.WithMetrics(e.Registry))
	e.Client = api.NewClient(s.Node.Address, s.Node.APIToken, options...)

	if addr := e.v.GetString("metrics-addr"); addr != "" {
		if err := e.serveMetrics(addr); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "could not listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Registry, promhttp.HandlerOpts{Registry: e.Registry}))
	e.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := e.metricsServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

func (e *Env) shutdown() error {
	if e.metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.metricsServer.Shutdown(ctx)
}

func (e *Env) print(w io.Writer, v interface{}) error {
	return printValue(w, e.Output, v)
}

func (e *Env) fetcher() conversation.Fetcher {
	return conversation.NewNodeFetcher(e.Client)
}
