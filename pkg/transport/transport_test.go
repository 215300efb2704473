package transport

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

var addrSeq atomic.Int64

func inprocAddr() string {
	return fmt.Sprintf("inproc://graphview-frames-%d", addrSeq.Add(1))
}

func TestEncodeDecode(t *testing.T) {
	msg, err := Encode("layout/s1", map[string]int{"iteration": 3})
	require.NoError(t, err)
	assert.Equal(t, `layout/s1|{"iteration":3}`, string(msg))

	topic, body, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, "layout/s1", topic)
	assert.JSONEq(t, `{"iteration":3}`, string(body))

	_, _, err = Decode([]byte("no separator"))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestFramePublisher_DeliversSessionFrames(t *testing.T) {
	addr := inprocAddr()
	pub, err := NewFramePublisher(addr, logging.NewNopLogger())
	require.NoError(t, err)
	defer pub.Close()

	sub, err := NewFrameSubscriber(addr)
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, sub.SubscribeSession("s1"))
	require.NoError(t, sub.SetRecvDeadline(2*time.Second))

	frame := layout.Frame{
		SessionID: "s1",
		Iteration: 4,
		Nodes: []synthesis.GraphNode{
			{ID: "doc::a", Label: "A", Position: synthesis.Position{X: 1.5, Y: -2}},
		},
		Edges:           []synthesis.GraphEdge{},
		MaxDisplacement: 0.05,
		State:           layout.StateConverged,
	}

	// pub/sub drops messages until the subscription is connected, so keep
	// sending until one arrives
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				pub.PublishFrame(layout.Frame{SessionID: "other", Iteration: 99})
				pub.PublishFrame(frame)
			}
		}
	}()

	got, err := sub.RecvFrame()
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 4, got.Iteration)
	assert.Equal(t, layout.StateConverged, got.State)
	assert.Equal(t, frame.Nodes, got.Nodes)
}

func TestFramePublisher_PublishAfterClose(t *testing.T) {
	pub, err := NewFramePublisher(inprocAddr(), logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	err = pub.Publish("layout/x", layout.Frame{})
	assert.True(t, errors.Is(err, ErrClosed))
	pub.PublishFrame(layout.Frame{SessionID: "x"})
}

func TestNewFramePublisher_BadAddress(t *testing.T) {
	_, err := NewFramePublisher("bogus://nowhere", logging.NewNopLogger())
	assert.Error(t, err)
}
