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
	"encoding/csv"
	"os/exec"
	"path"
	"runtime"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/pkg/errors"
)

type ProcessProber interface {
	Running(ctx context.Context) (bool, error)
}

type ProcessLister func(ctx context.Context) ([]string, error)

// PatternProber reports OBS as running when any process image name matches
// one of the configured patterns.
type PatternProber struct {
	matcher  *patternmatcher.PatternMatcher
	list     ProcessLister
	foldCase bool
}

func NewProcessProber(patterns []string) (*PatternProber, error) {
	return newPatternProber(patterns, runtime.GOOS, ListProcesses)
}

func newPatternProber(patterns []string, goos string, list ProcessLister) (*PatternProber, error) {
	// image names are case-insensitive on Windows
	foldCase := goos == "windows"
	if foldCase {
		lowered := make([]string, len(patterns))
		for i, p := range patterns {
			lowered[i] = strings.ToLower(p)
		}
		patterns = lowered
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create process matcher")
	}
	return &PatternProber{matcher: matcher, list: list, foldCase: foldCase}, nil
}

func (p *PatternProber) Running(ctx context.Context) (bool, error) {
	names, err := p.list(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if p.foldCase {
			name = strings.ToLower(name)
		}
		if matched, err := p.matcher.MatchesOrParentMatches(name); err != nil {
			return false, err
		} else if matched {
			return true, nil
		}
	}
	return false, nil
}

// ListProcesses returns the image names of running processes, using tasklist
// on Windows and ps elsewhere.
func ListProcesses(ctx context.Context) ([]string, error) {
	if runtime.GOOS == "windows" {
		out, err := exec.CommandContext(ctx, "tasklist", "/FO", "CSV", "/NH").Output()
		if err != nil {
			return nil, errors.Wrap(err, "tasklist failed")
		}
		return parseTasklist(string(out))
	}
	out, err := exec.CommandContext(ctx, "ps", "-A", "-o", "comm=").Output()
	if err != nil {
		return nil, errors.Wrap(err, "ps failed")
	}
	return parsePS(string(out)), nil
}

func parseTasklist(out string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "unexpected tasklist output")
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		if len(rec) > 0 && rec[0] != "" {
			names = append(names, rec[0])
		}
	}
	return names, nil
}

func parsePS(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// macOS reports the full executable path
		names = append(names, path.Base(line))
	}
	return names
}
