// Package cli implements the barqctl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/barq-desk/barq/internal/app"
	"github.com/barq-desk/barq/internal/platform/db"
)

// Deps are the factories the commands draw on. Tests replace them.
type Deps struct {
	Config  func() (*app.Config, error)
	Stores  func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Stores, error)
	Migrate func(ctx context.Context, cfg *app.Config, logger *slog.Logger) error
	Jobs    func(cfg *app.Config) JobsAPI
}

// DefaultDeps connects to the stores named by the environment.
func DefaultDeps() Deps {
	return Deps{
		Config:  func() (*app.Config, error) { return app.LoadConfig() },
		Stores:  app.OpenStores,
		Migrate: migrate,
		Jobs:    func(cfg *app.Config) JobsAPI { return NewJobsCLI(cfg.RedisAddr) },
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.StoreDriver == app.StoreSQLite {
		gdb, err := db.OpenSQLite(cfg.SQLitePath, false)
		if err != nil {
			return err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		return nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Debug("applying postgres schema")
	return db.Migrate(ctx, pool)
}

type state struct {
	deps    Deps
	cfg     *app.Config
	logger  *slog.Logger
	output  string
	verbose bool
}

// NewRootCmd assembles the barqctl command tree.
func NewRootCmd(deps Deps, version string) *cobra.Command {
	st := &state{deps: deps}
	root := &cobra.Command{
		Use:          "barqctl",
		Short:        "Operate a barq maker/checker deployment",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if st.verbose {
				level = slog.LevelDebug
			}
			st.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			switch st.output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unsupported output %q", st.output)
			}
			cfg, err := st.deps.Config()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&st.output, "output", "o", "table", "Output format: table, json, yaml")
	root.PersistentFlags().BoolVarP(&st.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newMigrateCmd(st),
		newPolicyCmd(st),
		newUserCmd(st),
		newAuthzCmd(st),
		newJobsCmd(st),
	)
	return root
}

func (st *state) openStores(ctx context.Context) (*app.Stores, error) {
	return st.deps.Stores(ctx, st.cfg, st.logger)
}

// render writes v as JSON or YAML, or calls table for the default format.
func (st *state) render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch st.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func newMigrateCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.deps.Migrate(cmd.Context(), st.cfg, st.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", st.cfg.StoreDriver)
			return nil
		},
	}
}
