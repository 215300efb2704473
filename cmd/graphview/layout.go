package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// layoutResult is what the layout command prints
type layoutResult struct {
	SessionID  string                `json:"sessionId"`
	State      layout.State          `json:"state"`
	Iterations int                   `json:"iterations"`
	Capped     bool                  `json:"capped"`
	Nodes      []synthesis.GraphNode `json:"nodes"`
	Edges      []synthesis.GraphEdge `json:"edges"`
}

func layoutCmd(a *app) *cobra.Command {
	var (
		workspace     string
		maxIterations int
		timeout       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Run a headless layout session and print the final positions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := a.buildWorkspace(ctx, workspace, nil)
			if err != nil {
				return err
			}

			cfg := a.cfg.Layout
			if cmd.Flags().Changed("max-iterations") {
				cfg.MaxIterations = maxIterations
			}
			sim, err := a.newSimulator(cfg, layout.ImmediateScheduler{}, nil)
			if err != nil {
				return err
			}

			frames := make(chan layout.Frame, 1)
			session, err := sim.Start(res.Nodes, res.Edges, func(f layout.Frame) {
				if f.State.Terminal() {
					frames <- f
				}
			})
			if err != nil {
				return err
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if _, err := session.Wait(ctx); err != nil {
				session.Cancel()
				return fmt.Errorf("layout did not settle: %w", err)
			}

			out := layoutResult{
				SessionID:  session.ID(),
				State:      session.State(),
				Iterations: session.Iterations(),
				Nodes:      session.Snapshot(),
				Edges:      session.Edges(),
			}
			select {
			case f := <-frames:
				out.Capped = f.Capped
			default:
			}
			a.logger.Debug("layout finished",
				logging.SessionID(out.SessionID),
				logging.Iteration(out.Iterations),
				logging.Bool("capped", out.Capped))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "stop after this many iterations (0 = until converged)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
