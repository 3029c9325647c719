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

// Package obsws is a minimal obs-websocket v5 client covering the requests
// needed to watch and restart a stream.
package obsws

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/livekit/obs-watchdog/pkg/util"
	"github.com/livekit/protocol/logger"
)

const (
	DefaultConnectTimeout = 5 * time.Second

	CloseAuthenticationFailed  = 4009
	CloseUnsupportedRPCVersion = 4010

	StatusOutputRunning    = 500
	StatusOutputNotRunning = 501

	maxLoggedMessage = 512
)

var (
	ErrAuthRequired   = errors.New("authentication required but no password configured")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrClosed         = errors.New("connection closed")
	ErrHandshake      = errors.New("unexpected handshake message")
	ErrNoResponseData = errors.New("response carried no data")
)

type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Comment != "" {
		return fmt.Sprintf("%s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
	}
	return fmt.Sprintf("%s failed with code %d", e.RequestType, e.Code)
}

// IsOutputRunning reports whether err is OBS refusing to start an output that
// is already active.
func IsOutputRunning(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Code == StatusOutputRunning
}

type Options struct {
	URL            string
	Password       string
	ConnectTimeout time.Duration
	// bitmask of event categories, OBS defaults to all non-high-volume events
	EventSubscriptions *int
	OnEvent            func(*Event)
	Logger             logger.Logger
	Dialer             *websocket.Dialer
}

type Client struct {
	conn    *websocket.Conn
	log     logger.Logger
	onEvent func(*Event)

	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *RequestResponse
	err     error
	closed  core.Fuse

	rpcVersion int
}

// Dial connects to OBS and completes the Hello/Identify handshake.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	opts.Logger.Debugw("connecting to OBS WebSocket", "url", opts.URL, "usingPassword", opts.Password != "")
	conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to %s", opts.URL)
	}

	c := &Client{
		conn:    conn,
		log:     opts.Logger,
		onEvent: opts.OnEvent,
		pending: make(map[string]chan *RequestResponse),
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := c.handshake(opts); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	go c.readLoop()
	return c, nil
}

func (c *Client) handshake(opts Options) error {
	msg, err := c.readMessage()
	if err != nil {
		return errors.Wrap(err, "waiting for hello")
	}
	if msg.Op != OpHello {
		return errors.Wrapf(ErrHandshake, "expected hello, got op %d", msg.Op)
	}
	var hello Hello
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		return errors.Wrap(err, "invalid hello")
	}
	c.log.Debugw("received hello", "obsWebSocketVersion", hello.OBSWebSocketVersion, "rpcVersion", hello.RPCVersion)

	identify := Identify{
		RPCVersion:         RPCVersion,
		EventSubscriptions: opts.EventSubscriptions,
	}
	if hello.Authentication != nil {
		if opts.Password == "" {
			c.closeWith(CloseAuthenticationFailed, "no password")
			return ErrAuthRequired
		}
		identify.Authentication = AuthResponse(opts.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.send(OpIdentify, identify); err != nil {
		return errors.Wrap(err, "sending identify")
	}

	msg, err = c.readMessage()
	if err != nil {
		if websocket.IsCloseError(err, CloseAuthenticationFailed) {
			return ErrAuthFailed
		}
		return errors.Wrap(err, "waiting for identified")
	}
	if msg.Op != OpIdentified {
		return errors.Wrapf(ErrHandshake, "expected identified, got op %d", msg.Op)
	}
	var identified Identified
	if err := json.Unmarshal(msg.D, &identified); err != nil {
		return errors.Wrap(err, "invalid identified")
	}
	c.rpcVersion = identified.NegotiatedRPCVersion
	c.log.Infow("authenticated with OBS WebSocket", "rpcVersion", c.rpcVersion)
	return nil
}

func (c *Client) readMessage() (*Message, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.log.Debugw("received message", "raw", util.EllipsizeTo(string(data), maxLoggedMessage))
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrap(err, "invalid message")
	}
	return msg, nil
}

func (c *Client) readLoop() {
	for {
		msg, err := c.readMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) || c.closed.IsBroken() {
				c.log.Infow("OBS WebSocket connection closed", "reason", err.Error())
			} else {
				c.log.Warnw("OBS WebSocket read failed", err)
			}
			c.shutdown(errors.Wrap(ErrClosed, err.Error()))
			return
		}

		switch msg.Op {
		case OpRequestResponse:
			resp := &RequestResponse{}
			if err := json.Unmarshal(msg.D, resp); err != nil {
				c.log.Warnw("invalid request response", err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[resp.RequestID]
			delete(c.pending, resp.RequestID)
			c.mu.Unlock()
			if !ok {
				c.log.Debugw("response for unknown request", "requestId", resp.RequestID, "requestType", resp.RequestType)
				continue
			}
			ch <- resp

		case OpEvent:
			ev := &Event{}
			if err := json.Unmarshal(msg.D, ev); err != nil {
				c.log.Warnw("invalid event", err)
				continue
			}
			if c.onEvent != nil {
				c.onEvent(ev)
			}

		default:
			c.log.Debugw("ignoring message", "op", int(msg.Op))
		}
	}
}

func (c *Client) send(op OpCode, d any) error {
	data, err := encode(op, d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Request sends a request and waits for the matching response.
func (c *Client) Request(ctx context.Context, requestType string, data any) (*RequestResponse, error) {
	if c.closed.IsBroken() {
		return nil, c.Err()
	}

	id := strconv.FormatUint(c.nextID.Inc(), 10)
	ch := make(chan *RequestResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	req := Request{RequestType: requestType, RequestID: id, RequestData: data}
	if err := c.send(OpRequest, req); err != nil {
		forget()
		return nil, errors.Wrapf(err, "sending %s", requestType)
	}

	select {
	case resp := <-ch:
		if !resp.RequestStatus.Result {
			return resp, &RequestError{
				RequestType: requestType,
				Code:        resp.RequestStatus.Code,
				Comment:     resp.RequestStatus.Comment,
			}
		}
		return resp, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.closed.Watch():
		return nil, c.Err()
	}
}

func (c *Client) GetStreamStatus(ctx context.Context) (*StreamStatus, error) {
	resp, err := c.Request(ctx, RequestGetStreamStatus, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.ResponseData) == 0 || string(resp.ResponseData) == "null" {
		return nil, ErrNoResponseData
	}
	status := &StreamStatus{}
	if err := json.Unmarshal(resp.ResponseData, status); err != nil {
		return nil, errors.Wrap(err, "invalid stream status")
	}
	return status, nil
}

func (c *Client) StartStream(ctx context.Context) error {
	_, err := c.Request(ctx, RequestStartStream, nil)
	return err
}

func (c *Client) StopStream(ctx context.Context) error {
	_, err := c.Request(ctx, RequestStopStream, nil)
	return err
}

func (c *Client) RPCVersion() int {
	return c.rpcVersion
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closed.Watch()
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

func (c *Client) Close() error {
	if c.closed.IsBroken() {
		return nil
	}
	c.closeWith(websocket.CloseNormalClosure, "")
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) closeWith(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.IsBroken() {
		return
	}
	c.err = err
	c.closed.Break()
	_ = c.conn.Close()
}
