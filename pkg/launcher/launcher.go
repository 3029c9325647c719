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

// Package launcher checks for a Python interpreter, installs the package the
// watchdog script needs and hands control to the script.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/livekit/obs-watchdog/pkg/util"
	"github.com/livekit/protocol/logger"
)

type Config struct {
	Interpreters  []string
	Package       string
	Script        string
	PythonVersion string
	SkipInstalled bool
}

// ProgressFunc wraps a long running step, e.g. with a spinner.
type ProgressFunc func(title string, ctx context.Context, action func(ctx context.Context) error) error

type Result struct {
	Stage       Stage
	Stages      []Stage
	Interpreter string
	Version     *semver.Version
	// number of pip install invocations, never more than one
	InstallAttempts int
}

type Launcher struct {
	conf         Config
	exec         Executor
	out          io.Writer
	progress     ProgressFunc
	quietInstall bool
	log          logger.Logger
}

type Option func(*Launcher)

func WithExecutor(e Executor) Option {
	return func(l *Launcher) { l.exec = e }
}

func WithOutput(w io.Writer) Option {
	return func(l *Launcher) { l.out = w }
}

// WithProgress shows progress for the install step. The pip output is then
// captured and only printed if the install fails.
func WithProgress(p ProgressFunc) Option {
	return func(l *Launcher) {
		l.progress = p
		l.quietInstall = true
	}
}

func WithLogger(log logger.Logger) Option {
	return func(l *Launcher) { l.log = log }
}

func New(conf Config, opts ...Option) *Launcher {
	l := &Launcher{
		conf:     conf,
		exec:     NewOSExecutor(),
		out:      os.Stdout,
		progress: util.Direct,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch runs the launch sequence to completion. The returned error is
// non-nil only when the sequence aborted; the outcome of the target script
// never produces an error.
func (l *Launcher) Launch(ctx context.Context) (*Result, error) {
	res := &Result{}
	advance := func(s Stage) {
		res.Stage = s
		res.Stages = append(res.Stages, s)
		l.log.Debugw("launcher stage", "stage", s.String())
	}
	abort := func(err error) (*Result, error) {
		advance(StageAbort)
		l.log.Debugw("launch aborted", "kind", Kind(err), "error", err)
		return res, err
	}

	advance(StageStart)

	advance(StageCheckInterpreter)
	interpreter, version, err := l.Preflight(ctx)
	if err != nil {
		return abort(err)
	}
	res.Interpreter = interpreter
	res.Version = version

	advance(StageInstallDependency)
	attempted, err := l.Provision(ctx, interpreter)
	if attempted {
		res.InstallAttempts++
	}
	if err != nil {
		return abort(err)
	}

	advance(StageRunScript)
	l.RunScript(ctx, interpreter)

	advance(StageEnd)
	return res, nil
}

// Preflight resolves the first candidate interpreter that is on PATH and
// answers --version.
func (l *Launcher) Preflight(ctx context.Context) (string, *semver.Version, error) {
	fmt.Fprintln(l.out, "Checking for Python installation...")

	var tried []string
	for _, name := range l.conf.Interpreters {
		tried = append(tried, name)
		path, err := l.exec.LookPath(name)
		if err != nil {
			l.log.Debugw("interpreter not on PATH", "name", name)
			continue
		}

		out, err := l.exec.Run(ctx, versionCommand(path))
		if err != nil {
			// e.g. the Microsoft Store python.exe stub
			l.log.Debugw("interpreter did not run", "path", path, "error", err)
			continue
		}

		version, verr := parsePythonVersion(string(out))
		if verr != nil {
			l.log.Debugw("could not parse interpreter version", "path", path, "error", verr)
		}
		if l.conf.PythonVersion != "" {
			if err := checkVersion(version, l.conf.PythonVersion); err != nil {
				l.log.Infow("interpreter rejected", "path", path, "reason", err.Error())
				continue
			}
		}

		fmt.Fprintf(l.out, "Found %s\n", util.Accented(strings.TrimSpace(string(out))))
		if version != nil {
			l.log.Debugw("interpreter found", "path", path, "version", version.String())
		}
		return path, version, nil
	}

	fmt.Fprintln(l.out, util.Failed("Python is not installed or not in PATH."))
	fmt.Fprintf(l.out, "Please install Python from %s\n", util.PythonDownloadURL)
	fmt.Fprintln(l.out, "and make sure to check \"Add Python to PATH\" during installation.")
	if l.conf.PythonVersion != "" {
		fmt.Fprintf(l.out, "A Python version matching %q is required.\n", l.conf.PythonVersion)
	}
	return "", nil, errors.Wrapf(ErrInterpreterMissing, "tried %s", strings.Join(tried, ", "))
}

func checkVersion(version *semver.Version, constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid python_version constraint %q", constraint)
	}
	if version == nil {
		return errors.New("unknown interpreter version")
	}
	if !c.Check(version) {
		return fmt.Errorf("version %s does not satisfy %s", version, constraint)
	}
	return nil
}

// Provision makes sure the package is installed. It reports whether a pip
// install was attempted; there is never more than one attempt.
func (l *Launcher) Provision(ctx context.Context, interpreter string) (bool, error) {
	pkg := l.conf.Package

	if l.conf.SkipInstalled {
		if _, err := l.exec.Run(ctx, showCommand(interpreter, pkg)); err == nil {
			fmt.Fprintf(l.out, "Package %s is already installed\n", util.Accented(pkg))
			return false, nil
		}
	}

	fmt.Fprintf(l.out, "Installing required package %s...\n", util.Accented(pkg))
	cmd := installCommand(interpreter, pkg, l.quietInstall)
	var output []byte
	err := l.progress("Installing "+pkg+"...", ctx, func(ctx context.Context) error {
		var err error
		output, err = l.exec.Run(ctx, cmd)
		return err
	})
	if err != nil {
		if len(output) > 0 {
			_, _ = l.out.Write(output)
		}
		fmt.Fprintln(l.out, util.Failed("Failed to install "+pkg+"."))
		fmt.Fprintf(l.out, "Please install it manually with: %s\n", util.Accented("pip install "+pkg))
		l.log.Debugw("install failed", "command", util.CommandLine(cmd.Name, cmd.Args...), "error", err)
		return true, errors.Wrapf(ErrDependencyInstallFailed, "%s: %v", pkg, err)
	}
	return true, nil
}

// RunScript hands control to the target script and waits for it to return.
// Its exit status is not interpreted.
func (l *Launcher) RunScript(ctx context.Context, interpreter string) {
	fmt.Fprintf(l.out, "Starting %s...\n", util.Accented(l.conf.Script))
	cmd := scriptCommand(interpreter, l.conf.Script)
	if _, err := l.exec.Run(ctx, cmd); err != nil {
		l.log.Debugw("target script exited", "command", util.CommandLine(cmd.Name, cmd.Args...), "error", err)
	}
}
