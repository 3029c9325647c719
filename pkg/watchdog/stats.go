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
	"time"

	"go.uber.org/atomic"
)

type Stats struct {
	startedAt       atomic.Time
	checks          atomic.Int64
	connects        atomic.Int64
	connectFailures atomic.Int64
	restarts        atomic.Int64
	fallbacks       atomic.Int64
	obsMissing      atomic.Int64
}

type StatsSnapshot struct {
	Uptime          time.Duration
	Checks          int64
	Connects        int64
	ConnectFailures int64
	Restarts        int64
	Fallbacks       int64
	OBSMissing      int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	var uptime time.Duration
	if started := s.startedAt.Load(); !started.IsZero() {
		uptime = time.Since(started).Round(time.Second)
	}
	return StatsSnapshot{
		Uptime:          uptime,
		Checks:          s.checks.Load(),
		Connects:        s.connects.Load(),
		ConnectFailures: s.connectFailures.Load(),
		Restarts:        s.restarts.Load(),
		Fallbacks:       s.fallbacks.Load(),
		OBSMissing:      s.obsMissing.Load(),
	}
}

func (s StatsSnapshot) KeysAndValues() []any {
	return []any{
		"uptime", s.Uptime.String(),
		"checks", s.Checks,
		"connects", s.Connects,
		"connectFailures", s.ConnectFailures,
		"restarts", s.Restarts,
		"fallbacks", s.Fallbacks,
		"obsMissing", s.OBSMissing,
	}
}
