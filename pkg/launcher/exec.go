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

package launcher

import (
	"context"
	"io"
	"os"
	"os/exec"
)

type Command struct {
	Name string
	Args []string
	// capture combined output instead of streaming it to the console
	Quiet bool
}

// Executor spawns child processes and waits for them to exit.
type Executor interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

type OSExecutor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func NewOSExecutor() *OSExecutor {
	return &OSExecutor{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (e *OSExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (e *OSExecutor) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Quiet {
		return cmd.CombinedOutput()
	}
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return nil, cmd.Run()
}
