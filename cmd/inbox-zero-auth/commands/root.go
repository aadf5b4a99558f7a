package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lufe-digital/inbox-zero/pkg/catalog"
	"github.com/lufe-digital/inbox-zero/pkg/db"
	"github.com/lufe-digital/inbox-zero/pkg/logs"
	"github.com/lufe-digital/inbox-zero/pkg/oauth"
	"github.com/lufe-digital/inbox-zero/pkg/retry"
	"github.com/lufe-digital/inbox-zero/pkg/telemetry"
)

type rootOptions struct {
	catalogPath string
	dbFile      string
	debug       bool
}

// Root returns the inbox-zero-auth root command.
func Root() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "inbox-zero-auth",
		Short:         "Connect and manage third-party integrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.catalogPath, "catalog", "", "Path to an integration catalog file (defaults to the built-in catalog)")
	flags.StringVar(&opts.dbFile, "db", "", "Path to the integrations database (defaults to ~/.inbox-zero/integrations.db)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(integrationsCommand(&opts))
	cmd.AddCommand(connectCommand(&opts))
	cmd.AddCommand(tokenCommand(&opts))
	cmd.AddCommand(refreshCommand(&opts))
	cmd.AddCommand(setAPIKeyCommand(&opts))
	cmd.AddCommand(statusCommand(&opts))

	return cmd
}

// runtime bundles everything a subcommand needs, built once per invocation.
type runtime struct {
	catalog *catalog.Catalog
	dao     db.DAO
	manager *oauth.Manager
	log     *zap.Logger
}

func newRuntime(ctx context.Context, opts *rootOptions) (*runtime, error) {
	log, err := logs.New(opts.debug)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	cat, err := loadCatalog(opts.catalogPath)
	if err != nil {
		return nil, err
	}

	var dbOpts []db.Option
	if opts.dbFile != "" {
		dbOpts = append(dbOpts, db.WithDatabaseFile(opts.dbFile))
	}
	// Another invocation may be mid-migration; wait it out instead of failing.
	var dao db.DAO
	err = retry.IfErrorIs(ctx, 3, 500*time.Millisecond, func() error {
		var dbErr error
		dao, dbErr = db.New(dbOpts...)
		return dbErr
	}, db.ErrMigrationLocked)
	if err != nil {
		return nil, err
	}

	telemetry.Init()

	return &runtime{
		catalog: cat,
		dao:     dao,
		manager: oauth.NewManager(cat, dao, oauth.WithLogger(log)),
		log:     log,
	}, nil
}

func (r *runtime) Close() {
	_ = r.dao.Close()
	_ = r.log.Sync()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path != "" {
		return catalog.ReadFrom(path)
	}
	return catalog.Default()
}
