package main

import (
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/pubsub"
	"github.com/dd0wney/cluso-graphview/pkg/transport"
)

// frameSource feeds the watch view
type frameSource interface {
	Frames() <-chan layout.Frame
	// Err reports why Frames was closed, nil for a clean end
	Err() error
	Stop()
}

// mailbox holds only the most recent frame. put never blocks, so a session
// publishing under its lock cannot stall behind a slow terminal.
type mailbox struct {
	ch chan layout.Frame
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan layout.Frame, 1)}
}

// put replaces any unread frame. It must only be called from one goroutine.
func (m *mailbox) put(f layout.Frame) {
	for {
		select {
		case m.ch <- f:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// sessionSource watches a session running in this process
type sessionSource struct {
	session *layout.Session
	box     *mailbox
}

func (s *sessionSource) Frames() <-chan layout.Frame { return s.box.ch }
func (s *sessionSource) Err() error                  { return nil }
func (s *sessionSource) Stop()                       { s.session.Cancel() }

// remoteSource watches frames published by a serving process
type remoteSource struct {
	sub      *transport.FrameSubscriber
	box      *mailbox
	err      error
	stopOnce sync.Once
}

func newRemoteSource(sub *transport.FrameSubscriber) *remoteSource {
	r := &remoteSource{sub: sub, box: newMailbox()}
	go r.pump()
	return r
}

func (r *remoteSource) pump() {
	defer close(r.box.ch)
	for {
		f, err := r.sub.RecvFrame()
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				r.err = err
			}
			return
		}
		r.box.put(f)
	}
}

func (r *remoteSource) Frames() <-chan layout.Frame { return r.box.ch }

// Err is only read after Frames is closed, which orders it after pump's write
func (r *remoteSource) Err() error { return r.err }

func (r *remoteSource) Stop() {
	r.stopOnce.Do(func() { _ = r.sub.Close() })
}

func watchCmd(a *app) *cobra.Command {
	var (
		workspace string
		remote    string
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a layout converge in the terminal",
		Long: "Watch runs a layout session for a workspace and draws every frame on a\n" +
			"character grid. With --remote it instead follows frames published by\n" +
			"`graphview serve` with transport enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the viewer.
			a.logger = logging.NewNopLogger()

			var (
				src   frameSource
				title string
			)
			switch {
			case remote != "":
				sub, err := transport.NewFrameSubscriber(remote)
				if err != nil {
					return err
				}
				topic := "layout/"
				if sessionID != "" {
					err = sub.SubscribeSession(sessionID)
					topic = pubsub.FrameTopic(sessionID)
				} else {
					err = sub.Subscribe(topic)
				}
				if err != nil {
					sub.Close()
					return err
				}
				src = newRemoteSource(sub)
				title = fmt.Sprintf("graphview · %s · %s", remote, topic)

			case workspace != "":
				res, err := a.buildWorkspace(cmd.Context(), workspace, nil)
				if err != nil {
					return err
				}
				sim, err := a.newSimulator(a.cfg.Layout, nil, nil)
				if err != nil {
					return err
				}
				box := newMailbox()
				session, err := sim.Start(res.Nodes, res.Edges, box.put)
				if err != nil {
					return err
				}
				src = &sessionSource{session: session, box: box}
				title = fmt.Sprintf("graphview · %s · %d documents", workspace, res.Stats.Documents)

			default:
				return errors.New("either --workspace or --remote is required")
			}
			defer src.Stop()

			p := tea.NewProgram(newWatchModel(title, src),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			_, err := p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace to lay out locally")
	cmd.Flags().StringVar(&remote, "remote", "", "follow frames published at this transport address")
	cmd.Flags().StringVar(&sessionID, "session", "", "with --remote, follow only this session")
	return cmd
}
