package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/cas-client/pkg/cache"
	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/config"
	"github.com/Sternrassler/cas-client/pkg/enrich"
	"github.com/Sternrassler/cas-client/pkg/logging"
	"github.com/Sternrassler/cas-client/pkg/pagination"
	"github.com/Sternrassler/cas-client/pkg/session"
	"github.com/Sternrassler/cas-client/pkg/view"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// envToken holds the bearer token for list and view when --token is unset.
const envToken = "CAS_TOKEN"

// app holds the global flags and the state built from them.
type app struct {
	configPath string
	apiURL     string
	token      string
	logLevel   string

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "casboard",
		Short:        "Case-management dashboard pages with resolved references",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.apiURL, "api-url", "", "CAS API base url (overrides config and "+config.EnvAPIURL+")")
	flags.StringVar(&a.token, "token", "", "bearer token for list and view (default $"+envToken+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newViewCmd(a),
		newReportCmd(a),
	)
	return root
}

// load resolves the configuration: file, then environment, then flags.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)

	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	logging.Setup(cfg.LoggingConfig())
	a.logger = logging.NewLogger("casboard")
	return nil
}

func (a *app) newClient() (*client.Client, error) {
	return client.New(a.cfg.ClientConfig())
}

// newRedis connects the shared label cache, or returns nil when none is configured.
func (a *app) newRedis() redis.UniversalClient {
	opts := a.cfg.RedisOptions()
	if opts == nil {
		return nil
	}
	return redis.NewClient(opts)
}

// session builds the CLI session from --token or $CAS_TOKEN.
func (a *app) session() (session.Session, error) {
	token := a.token
	if token == "" {
		token = os.Getenv(envToken)
	}
	sess, err := session.FromToken(token)
	if err != nil {
		return sess, fmt.Errorf("session: %w (use --token or $%s)", err, envToken)
	}
	return sess, nil
}

// deps wires the collaborators of a dashboard page for one session.
func deps(c *client.Client, cfg config.Config, sess session.Session, store enrich.Store) view.Deps {
	return view.Deps{
		Drainer:    pagination.NewDrainer(c.Pages(sess), cfg.PaginationConfig()),
		Backfiller: enrich.NewBackfiller(c.Items(sess), store, cfg.EnrichConfig()),
		Resolver:   c,
	}
}

// labelStore returns the label store for one session: Redis when configured,
// process memory otherwise.
func labelStore(rdb redis.UniversalClient, cfg config.Config) enrich.Store {
	if rdb == nil {
		return enrich.NewMemoryStore()
	}
	return cache.NewRedisStore(rdb, cache.NewSession(), cfg.Redis.TTL)
}

// pageDefinition looks a catalog page up by name.
func pageDefinition(name string) (view.Definition, error) {
	def, ok := view.Catalog()[name]
	if !ok {
		return view.Definition{}, fmt.Errorf("unknown page %q (available: %s)", name, strings.Join(view.Names(), ", "))
	}
	return def, nil
}
