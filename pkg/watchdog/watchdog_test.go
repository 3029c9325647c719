// Copyright 2026 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livekit/obs-watchdog/pkg/obsws"
	"github.com/livekit/protocol/logger"
)

type fakeStream struct {
	mu        sync.Mutex
	active    bool
	statusErr error
	startErr  error
	starts    int
	closed    bool
	done      chan struct{}
}

func newFakeStream(active bool) *fakeStream {
	return &fakeStream{active: active, done: make(chan struct{})}
}

func (s *fakeStream) GetStreamStatus(context.Context) (*obsws.StreamStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &obsws.StreamStatus{OutputActive: s.active}, nil
}

func (s *fakeStream) StartStream(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.active = true
	return nil
}

func (s *fakeStream) Done() <-chan struct{} {
	return s.done
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *fakeStream) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeProber struct {
	running bool
	err     error
}

func (p *fakeProber) Running(context.Context) (bool, error) {
	return p.running, p.err
}

type fakeFallback struct {
	calls int
	err   error
}

func (f *fakeFallback) StartStream(context.Context) error {
	f.calls++
	return f.err
}

type harness struct {
	streams  []*fakeStream
	next     func() (*fakeStream, error)
	prober   *fakeProber
	fallback *fakeFallback
	onEvent  func(*obsws.Event)
	w        *Watchdog
}

func newHarness(conf Config, next func() (*fakeStream, error)) *harness {
	h := &harness{
		next:     next,
		prober:   &fakeProber{running: true},
		fallback: &fakeFallback{},
	}
	dial := func(ctx context.Context, onEvent func(*obsws.Event)) (Stream, error) {
		h.onEvent = onEvent
		s, err := h.next()
		if err != nil {
			return nil, err
		}
		h.streams = append(h.streams, s)
		return s, nil
	}
	h.w = New(conf, dial, h.prober,
		WithFallback(h.fallback),
		WithLogger(logger.LogRLogger(logr.Discard())),
	)
	return h
}

func testConfig() Config {
	return Config{
		CheckInterval:    10 * time.Millisecond,
		ConnectTimeout:   time.Second,
		StatusTimeout:    time.Second,
		KeyboardFallback: true,
	}
}

func TestCheckOBSNotRunning(t *testing.T) {
	stream := newFakeStream(true)
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })
	ctx := context.Background()

	require.NoError(t, h.w.Check(ctx))
	require.Len(t, h.streams, 1)

	h.prober.running = false
	require.NoError(t, h.w.Check(ctx))
	assert.True(t, stream.Closed(), "connection should be dropped when OBS exits")
	assert.Zero(t, h.fallback.calls)
	assert.Equal(t, int64(1), h.w.Stats().OBSMissing)
}

func TestCheckProbeErrorMeansNotRunning(t *testing.T) {
	h := newHarness(testConfig(), func() (*fakeStream, error) { return newFakeStream(false), nil })
	h.prober.running = true
	h.prober.err = errors.New("exit status 1")

	require.NoError(t, h.w.Check(context.Background()))
	assert.Empty(t, h.streams)
	assert.Zero(t, h.fallback.calls)
	assert.Equal(t, int64(1), h.w.Stats().OBSMissing)
}

func TestCheckActiveStream(t *testing.T) {
	stream := newFakeStream(true)
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })

	require.NoError(t, h.w.Check(context.Background()))
	assert.Zero(t, stream.Starts())
	assert.True(t, h.w.Streaming())
}

func TestCheckStartsInactiveStream(t *testing.T) {
	stream := newFakeStream(false)
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })
	ctx := context.Background()

	require.NoError(t, h.w.Check(ctx))
	assert.Equal(t, 1, stream.Starts())
	assert.Equal(t, int64(1), h.w.Stats().Restarts)

	// connection is reused and the stream is now live
	require.NoError(t, h.w.Check(ctx))
	assert.Equal(t, 1, stream.Starts())
	assert.Len(t, h.streams, 1)
	assert.Equal(t, int64(1), h.w.Stats().Connects)
}

func TestCheckConnectFailureUsesFallback(t *testing.T) {
	h := newHarness(testConfig(), func() (*fakeStream, error) { return nil, errors.New("connection refused") })

	require.NoError(t, h.w.Check(context.Background()))
	assert.Equal(t, 1, h.fallback.calls)
	assert.Equal(t, int64(1), h.w.Stats().ConnectFailures)
	assert.Equal(t, int64(1), h.w.Stats().Fallbacks)
}

func TestCheckFallbackDisabled(t *testing.T) {
	conf := testConfig()
	conf.KeyboardFallback = false
	h := newHarness(conf, func() (*fakeStream, error) { return nil, errors.New("connection refused") })

	require.NoError(t, h.w.Check(context.Background()))
	assert.Zero(t, h.fallback.calls)
}

func TestCheckFallbackUnsupported(t *testing.T) {
	h := newHarness(testConfig(), func() (*fakeStream, error) { return nil, errors.New("connection refused") })
	h.fallback.err = ErrFallbackUnsupported

	require.NoError(t, h.w.Check(context.Background()))
	assert.Zero(t, h.w.Stats().Fallbacks)
}

func TestCheckStartFailureUsesFallback(t *testing.T) {
	stream := newFakeStream(false)
	stream.startErr = &obsws.RequestError{RequestType: obsws.RequestStartStream, Code: 702}
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })

	require.NoError(t, h.w.Check(context.Background()))
	assert.Equal(t, 1, stream.Starts())
	assert.Equal(t, 1, h.fallback.calls)
	assert.Zero(t, h.w.Stats().Restarts)
}

func TestCheckOutputAlreadyRunning(t *testing.T) {
	stream := newFakeStream(false)
	stream.startErr = &obsws.RequestError{RequestType: obsws.RequestStartStream, Code: obsws.StatusOutputRunning}
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })

	require.NoError(t, h.w.Check(context.Background()))
	assert.Zero(t, h.fallback.calls)
	assert.True(t, h.w.Streaming())
}

func TestCheckStatusErrorDropsClosedConnection(t *testing.T) {
	first := newFakeStream(false)
	first.statusErr = obsws.ErrClosed
	second := newFakeStream(true)
	streams := []*fakeStream{first, second}
	h := newHarness(testConfig(), func() (*fakeStream, error) {
		s := streams[0]
		streams = streams[1:]
		return s, nil
	})
	ctx := context.Background()

	require.ErrorIs(t, h.w.Check(ctx), obsws.ErrClosed)
	assert.True(t, first.Closed())

	require.NoError(t, h.w.Check(ctx))
	assert.Len(t, h.streams, 2)
}

func TestCheckStatusWithoutDataUsesLastKnownState(t *testing.T) {
	stream := newFakeStream(false)
	stream.statusErr = obsws.ErrNoResponseData
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })
	ctx := context.Background()

	h.w.streaming.Store(true)
	require.NoError(t, h.w.Check(ctx))
	assert.Zero(t, stream.Starts())
	assert.False(t, stream.Closed())

	h.w.streaming.Store(false)
	require.NoError(t, h.w.Check(ctx))
	assert.Equal(t, 1, stream.Starts())
}

func TestCheckReconnectsAfterConnectionLoss(t *testing.T) {
	h := newHarness(testConfig(), func() (*fakeStream, error) { return newFakeStream(true), nil })
	ctx := context.Background()

	require.NoError(t, h.w.Check(ctx))
	require.NoError(t, h.streams[0].Close())

	require.NoError(t, h.w.Check(ctx))
	assert.Len(t, h.streams, 2)
	assert.Equal(t, int64(2), h.w.Stats().Connects)
}

func TestRestartCooldown(t *testing.T) {
	conf := testConfig()
	conf.RestartCooldown = time.Hour
	stream := newFakeStream(false)
	stream.startErr = errors.New("output failed")
	h := newHarness(conf, func() (*fakeStream, error) { return stream, nil })
	ctx := context.Background()

	require.NoError(t, h.w.Check(ctx))
	require.NoError(t, h.w.Check(ctx))
	assert.Equal(t, 1, stream.Starts(), "second restart should wait for the cooldown")
	assert.Equal(t, 1, h.fallback.calls)
}

func TestHandleStreamStateChanged(t *testing.T) {
	stream := newFakeStream(true)
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })
	require.NoError(t, h.w.Check(context.Background()))
	require.NotNil(t, h.onEvent)
	require.True(t, h.w.Streaming())

	data, err := json.Marshal(obsws.StreamStateChanged{OutputActive: false, OutputState: "OBS_WEBSOCKET_OUTPUT_STOPPED"})
	require.NoError(t, err)
	h.onEvent(&obsws.Event{EventType: obsws.EventStreamStateChanged, EventData: data})
	assert.False(t, h.w.Streaming())
}

func TestRunStopsOnCancel(t *testing.T) {
	stream := newFakeStream(true)
	h := newHarness(testConfig(), func() (*fakeStream, error) { return stream, nil })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.w.Run(ctx) }()

	require.Eventually(t, func() bool { return h.w.Stats().Checks >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, stream.Closed())
}
