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

package obsws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const (
	testSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	testChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

// fakeOBS speaks enough obs-websocket v5 to exercise the client.
type fakeOBS struct {
	t        *testing.T
	password string
	srv      *httptest.Server

	mu          sync.Mutex
	streaming   bool
	emptyStatus bool
	requests    []Request
	identify    *Identify
	conns       []*websocket.Conn
}

func newFakeOBS(t *testing.T, password string) *fakeOBS {
	f := &fakeOBS{t: t, password: password}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOBS) URL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeOBS) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *fakeOBS) SetStreaming(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaming = active
}

// OmitStatusData makes GetStreamStatus answer without responseData.
func (f *fakeOBS) OmitStatusData() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emptyStatus = true
}

// DropConnections closes every accepted connection without a close frame.
func (f *fakeOBS) DropConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeOBS) write(conn *websocket.Conn, op OpCode, d any) {
	data, err := encode(op, d)
	if err != nil {
		f.t.Errorf("encode: %v", err)
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (f *fakeOBS) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	hello := Hello{OBSWebSocketVersion: "5.0.0", RPCVersion: RPCVersion}
	if f.password != "" {
		hello.Authentication = &Authentication{Challenge: testChallenge, Salt: testSalt}
	}
	f.write(conn, OpHello, hello)

	msg := &Message{}
	if err := conn.ReadJSON(msg); err != nil || msg.Op != OpIdentify {
		return
	}
	identify := &Identify{}
	_ = json.Unmarshal(msg.D, identify)
	f.mu.Lock()
	f.identify = identify
	f.mu.Unlock()

	if f.password != "" && identify.Authentication != AuthResponse(f.password, testSalt, testChallenge) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseAuthenticationFailed, "Authentication failed."),
			time.Now().Add(time.Second))
		return
	}
	f.write(conn, OpIdentified, Identified{NegotiatedRPCVersion: RPCVersion})

	for {
		msg := &Message{}
		if err := conn.ReadJSON(msg); err != nil {
			return
		}
		if msg.Op != OpRequest {
			continue
		}
		req := Request{}
		_ = json.Unmarshal(msg.D, &req)
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		resp := RequestResponse{
			RequestType:   req.RequestType,
			RequestID:     req.RequestID,
			RequestStatus: RequestStatus{Result: true, Code: 100},
		}
		var event *Event

		f.mu.Lock()
		switch req.RequestType {
		case RequestGetStreamStatus:
			if !f.emptyStatus {
				resp.ResponseData, _ = json.Marshal(StreamStatus{OutputActive: f.streaming})
			}
		case RequestStartStream, RequestStopStream:
			start := req.RequestType == RequestStartStream
			if f.streaming == start {
				resp.RequestStatus = RequestStatus{Result: false, Code: StatusOutputRunning}
				if !start {
					resp.RequestStatus.Code = StatusOutputNotRunning
				}
			} else {
				f.streaming = start
				data, _ := json.Marshal(StreamStateChanged{OutputActive: start})
				event = &Event{EventType: EventStreamStateChanged, EventIntent: 64, EventData: data}
			}
		case "Hang":
			f.mu.Unlock()
			continue
		default:
			resp.RequestStatus = RequestStatus{Result: false, Code: 204, Comment: "unknown request"}
		}
		f.mu.Unlock()

		f.write(conn, OpRequestResponse, resp)
		if event != nil {
			f.write(conn, OpEvent, event)
		}
	}
}
