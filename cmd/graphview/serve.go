package main

import (
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphview/pkg/api"
	"github.com/dd0wney/cluso-graphview/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/transport"
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graphs and live layout sessions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			reg := metrics.DefaultRegistry()
			sim, err := a.newSimulator(cfg.Layout, nil, reg)
			if err != nil {
				return err
			}

			manager := layout.NewManager(sim,
				layout.WithRetention(cfg.Server.SessionRetention),
				layout.WithMaxRetained(cfg.Server.MaxRetainedSessions))

			opts := api.Options{
				Store:             st,
				Builder:           a.newBuilder(reg),
				Manager:           manager,
				Metrics:           reg,
				Logger:            a.logger,
				Addr:              cfg.Server.Addr,
				ReadTimeout:       cfg.Server.ReadTimeout,
				WriteTimeout:      cfg.Server.WriteTimeout,
				ShutdownTimeout:   cfg.Server.ShutdownTimeout,
				FinalFrameTimeout: cfg.Server.FinalFrameTimeout,
				MaxActiveSessions: cfg.Server.MaxActiveSessions,
				MaxBodyBytes:      cfg.Server.MaxBodyBytes,
			}
			if cfg.Server.LayoutStartsPerSecond > 0 {
				rl := middleware.DefaultRateLimitConfig()
				rl.RequestsPerSecond = cfg.Server.LayoutStartsPerSecond
				rl.BurstSize = cfg.Server.LayoutStartBurst
				opts.LayoutRateLimit = &rl
			}

			if cfg.Transport.Enabled {
				pub, err := transport.NewFramePublisher(cfg.Transport.Addr, a.logger)
				if err != nil {
					return err
				}
				defer pub.Close()
				opts.Sink = pub
				a.logger.Info("publishing frames", logging.String("addr", pub.Addr()))
			}

			srv, err := api.NewServer(opts)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
