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

// Package watchdog keeps an OBS stream live: it polls for the OBS process,
// asks obs-websocket for the stream state and starts the stream when it is
// not running.
package watchdog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/livekit/obs-watchdog/pkg/obsws"
	"github.com/livekit/protocol/logger"
)

// Stream is the part of an OBS connection the watchdog drives.
type Stream interface {
	GetStreamStatus(ctx context.Context) (*obsws.StreamStatus, error)
	StartStream(ctx context.Context) error
	Done() <-chan struct{}
	Close() error
}

type DialFunc func(ctx context.Context, onEvent func(*obsws.Event)) (Stream, error)

type Config struct {
	CheckInterval    time.Duration
	ConnectTimeout   time.Duration
	StatusTimeout    time.Duration
	RestartCooldown  time.Duration
	StatsInterval    time.Duration
	KeyboardFallback bool
}

type Watchdog struct {
	conf     Config
	dial     DialFunc
	prober   ProcessProber
	fallback Fallback
	limiter  *rate.Limiter
	log      logger.Logger

	stream    Stream
	streaming atomic.Bool
	stats     Stats
}

type Option func(*Watchdog)

func WithFallback(f Fallback) Option {
	return func(w *Watchdog) { w.fallback = f }
}

func WithLogger(log logger.Logger) Option {
	return func(w *Watchdog) { w.log = log }
}

// DialOBS returns a DialFunc connecting with the obsws client.
func DialOBS(url, password string, timeout time.Duration, log logger.Logger) DialFunc {
	return func(ctx context.Context, onEvent func(*obsws.Event)) (Stream, error) {
		c, err := obsws.Dial(ctx, obsws.Options{
			URL:            url,
			Password:       password,
			ConnectTimeout: timeout,
			OnEvent:        onEvent,
			Logger:         log,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func New(conf Config, dial DialFunc, prober ProcessProber, opts ...Option) *Watchdog {
	limit := rate.Inf
	if conf.RestartCooldown > 0 {
		limit = rate.Every(conf.RestartCooldown)
	}
	w := &Watchdog{
		conf:     conf,
		dial:     dial,
		prober:   prober,
		fallback: NewHotkeyFallback(),
		limiter:  rate.NewLimiter(limit, 1),
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run checks OBS every interval until ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) error {
	w.stats.startedAt.Store(time.Now())
	w.log.Infow("monitoring OBS streaming status", "interval", w.conf.CheckInterval.String())
	defer func() {
		w.disconnect()
		w.log.Infow("watchdog stopped", w.stats.Snapshot().KeysAndValues()...)
	}()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ticker := time.NewTicker(w.conf.CheckInterval)
		defer ticker.Stop()
		for {
			if err := w.Check(ctx); err != nil && ctx.Err() == nil {
				w.log.Warnw("check failed", err)
			}
			w.log.Debugw("checking again", "in", w.conf.CheckInterval.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	if w.conf.StatsInterval > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(w.conf.StatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					w.log.Infow("watchdog summary", w.stats.Snapshot().KeysAndValues()...)
				}
			}
		})
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Check runs a single watchdog iteration.
func (w *Watchdog) Check(ctx context.Context) error {
	w.stats.checks.Inc()

	running, err := w.prober.Running(ctx)
	if err != nil {
		w.log.Debugw("process probe failed", "error", err)
	}
	if err != nil || !running {
		w.stats.obsMissing.Inc()
		w.log.Infow("OBS is not running, waiting for OBS to start")
		w.disconnect()
		return nil
	}

	stream := w.connected(ctx)
	if stream == nil {
		w.log.Infow("not connected to OBS WebSocket, using fallback method")
		return w.startWithFallback(ctx)
	}

	statusCtx, cancel := w.timeout(ctx, w.conf.StatusTimeout)
	status, err := stream.GetStreamStatus(statusCtx)
	cancel()
	var active bool
	switch {
	case errors.Is(err, obsws.ErrNoResponseData):
		active = w.streaming.Load()
		w.log.Debugw("stream status carried no data, using last known state", "active", active)
	case err != nil:
		if errors.Is(err, obsws.ErrClosed) {
			w.disconnect()
		}
		return errors.Wrap(err, "could not get stream status")
	default:
		active = status.OutputActive
		w.streaming.Store(active)
	}
	if active {
		w.log.Debugw("stream is active")
		return nil
	}

	w.log.Infow("OBS is not streaming, starting stream")
	return w.restart(ctx, stream)
}

// Streaming is the last known stream state.
func (w *Watchdog) Streaming() bool {
	return w.streaming.Load()
}

func (w *Watchdog) Stats() StatsSnapshot {
	return w.stats.Snapshot()
}

func (w *Watchdog) connected(ctx context.Context) Stream {
	if w.stream != nil {
		select {
		case <-w.stream.Done():
			w.log.Infow("lost connection to OBS WebSocket")
			w.stream = nil
		default:
			return w.stream
		}
	}

	stream, err := w.dial(ctx, w.handleEvent)
	if err != nil {
		w.stats.connectFailures.Inc()
		w.log.Warnw("could not connect to OBS WebSocket", err)
		return nil
	}
	w.stats.connects.Inc()
	w.stream = stream
	return stream
}

func (w *Watchdog) disconnect() {
	if w.stream == nil {
		return
	}
	_ = w.stream.Close()
	w.stream = nil
}

func (w *Watchdog) restart(ctx context.Context, stream Stream) error {
	if !w.limiter.Allow() {
		w.log.Infow("skipping restart, cooldown in effect", "cooldown", w.conf.RestartCooldown.String())
		return nil
	}

	startCtx, cancel := w.timeout(ctx, w.conf.StatusTimeout)
	err := stream.StartStream(startCtx)
	cancel()
	switch {
	case err == nil:
		w.stats.restarts.Inc()
		w.log.Infow("start streaming request sent via WebSocket")
		return nil
	case obsws.IsOutputRunning(err):
		w.streaming.Store(true)
		return nil
	}

	w.log.Warnw("could not start stream via WebSocket", err)
	return w.fallbackStart(ctx)
}

func (w *Watchdog) startWithFallback(ctx context.Context) error {
	if !w.limiter.Allow() {
		w.log.Infow("skipping fallback, cooldown in effect", "cooldown", w.conf.RestartCooldown.String())
		return nil
	}
	return w.fallbackStart(ctx)
}

func (w *Watchdog) fallbackStart(ctx context.Context) error {
	if !w.conf.KeyboardFallback || w.fallback == nil {
		w.log.Debugw("keyboard fallback disabled")
		return nil
	}
	err := w.fallback.StartStream(ctx)
	if errors.Is(err, ErrFallbackUnsupported) {
		w.log.Debugw("keyboard fallback unavailable on this platform")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "keyboard fallback failed")
	}
	w.stats.fallbacks.Inc()
	w.log.Infow("stream start command sent via keyboard shortcut")
	return nil
}

func (w *Watchdog) handleEvent(ev *obsws.Event) {
	switch ev.EventType {
	case obsws.EventStreamStateChanged:
		var data obsws.StreamStateChanged
		if err := json.Unmarshal(ev.EventData, &data); err != nil {
			w.log.Warnw("invalid stream state event", err)
			return
		}
		w.streaming.Store(data.OutputActive)
		w.log.Infow("stream state changed", "active", data.OutputActive, "state", data.OutputState)
	case obsws.EventExitStarted:
		w.log.Infow("OBS is shutting down")
	}
}

func (w *Watchdog) timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
