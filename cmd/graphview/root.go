package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphview/pkg/config"
	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/store"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

var version = "0.3.0"

// app carries what every subcommand shares once flags are parsed
type app struct {
	configPath string
	envFile    string
	cfg        *config.Config
	logger     logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "graphview",
		Short:         "Build and lay out knowledge graphs from workspace documents",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	cmd.SetVersionTemplate("graphview {{ .Version }}\n")
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	cmd.AddCommand(
		buildCmd(a),
		layoutCmd(a),
		serveCmd(a),
		watchCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	// Variables already set in the environment win over the dotenv file.
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logging.NewJSONLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Log.Level))
	logging.SetDefaultLogger(a.logger)
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, a.cfg.Store, a.logger)
}

func (a *app) newBuilder(reg *metrics.Registry) *synthesis.Builder {
	opts := []synthesis.Option{
		synthesis.WithBounds(a.cfg.Builder.Width, a.cfg.Builder.Height),
		synthesis.WithLogger(a.logger),
		synthesis.WithMetrics(reg),
		synthesis.WithWorkers(a.cfg.Builder.DecodeWorkers),
	}
	if a.cfg.Builder.Seed != 0 {
		opts = append(opts, synthesis.WithSeed(a.cfg.Builder.Seed))
	}
	return synthesis.NewBuilder(opts...)
}

func (a *app) newSimulator(cfg layout.Config, sched layout.Scheduler, reg *metrics.Registry) (*layout.Simulator, error) {
	opts := []layout.Option{layout.WithLogger(a.logger), layout.WithMetrics(reg)}
	if sched != nil {
		opts = append(opts, layout.WithScheduler(sched))
	}
	return layout.NewSimulator(cfg, opts...)
}

// buildWorkspace opens the store, synthesizes one workspace and closes the store
func (a *app) buildWorkspace(ctx context.Context, workspaceID string, reg *metrics.Registry) (*synthesis.Result, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return a.newBuilder(reg).BuildWorkspace(ctx, st, workspaceID)
}
