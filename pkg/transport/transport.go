// Package transport publishes layout frames to renderers in other processes
// over nanomsg pub/sub sockets.
package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/pubsub"
)

// topicSeparator splits the topic from the JSON body of a message
const topicSeparator = '|'

var (
	// ErrClosed is returned by operations on a closed socket
	ErrClosed = errors.New("transport closed")
	// ErrMalformedMessage is returned for a message without a topic prefix
	ErrMalformedMessage = errors.New("malformed frame message")
)

// Socket is the subset of a mangos socket the publisher and subscriber use
type Socket interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
	SetOption(name string, value any) error
	Listen(addr string) error
	Dial(addr string) error
}

// Encode builds the wire form "<topic>|<json>"
func Encode(topic string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	msg := make([]byte, 0, len(topic)+1+len(body))
	msg = append(msg, topic...)
	msg = append(msg, topicSeparator)
	return append(msg, body...), nil
}

// Decode splits a wire message into its topic and JSON body
func Decode(msg []byte) (string, []byte, error) {
	i := bytes.IndexByte(msg, topicSeparator)
	if i < 0 {
		return "", nil, ErrMalformedMessage
	}
	return string(msg[:i]), msg[i+1:], nil
}

// FramePublisher binds a PUB socket and forwards every frame on its
// session topic
type FramePublisher struct {
	sock   Socket
	addr   string
	logger logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewFramePublisher listens on addr, e.g. "tcp://127.0.0.1:40899"
func NewFramePublisher(addr string, logger logging.Logger) (*FramePublisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	return newFramePublisher(sock, addr, logger)
}

func newFramePublisher(sock Socket, addr string, logger logging.Logger) (*FramePublisher, error) {
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	p := &FramePublisher{
		sock:   sock,
		addr:   addr,
		logger: logging.OrDefault(logger).With(logging.Component("transport")),
	}
	p.logger.Info("frame publisher listening", logging.String("addr", addr))
	return p, nil
}

// Addr returns the listen address
func (p *FramePublisher) Addr() string { return p.addr }

// Publish sends v on topic
func (p *FramePublisher) Publish(topic string, v any) error {
	msg, err := Encode(topic, v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.sock.Send(msg)
}

// PublishFrame sends a layout frame on its session topic. Send failures are
// logged; a missing remote renderer never stalls the simulation.
func (p *FramePublisher) PublishFrame(f layout.Frame) {
	if err := p.Publish(pubsub.FrameTopic(f.SessionID), f); err != nil && !errors.Is(err, ErrClosed) {
		p.logger.Warn("frame publish failed",
			logging.SessionID(f.SessionID),
			logging.Iteration(f.Iteration),
			logging.Error(err),
		)
	}
}

// Close closes the socket
func (p *FramePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sock.Close()
}

// FrameSubscriber dials a FramePublisher and receives frames for the topics
// it subscribes to
type FrameSubscriber struct {
	sock Socket
}

// NewFrameSubscriber dials addr
func NewFrameSubscriber(addr string) (*FrameSubscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create sub socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &FrameSubscriber{sock: sock}, nil
}

// Subscribe adds a topic prefix. An empty prefix receives everything.
func (s *FrameSubscriber) Subscribe(prefix string) error {
	return s.sock.SetOption(mangos.OptionSubscribe, []byte(prefix))
}

// SubscribeSession receives the frames of one layout session
func (s *FrameSubscriber) SubscribeSession(sessionID string) error {
	return s.Subscribe(pubsub.FrameTopic(sessionID) + string(topicSeparator))
}

// SetRecvDeadline bounds how long Recv blocks
func (s *FrameSubscriber) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

// RecvFrame blocks for the next frame
func (s *FrameSubscriber) RecvFrame() (layout.Frame, error) {
	var f layout.Frame
	msg, err := s.sock.Recv()
	if err != nil {
		if errors.Is(err, mangos.ErrClosed) {
			return f, ErrClosed
		}
		return f, err
	}
	_, body, err := Decode(msg)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(body, &f); err != nil {
		return f, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return f, nil
}

// Close closes the socket
func (s *FrameSubscriber) Close() error {
	return s.sock.Close()
}
