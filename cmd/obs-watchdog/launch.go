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

package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/livekit/obs-watchdog/pkg/launcher"
	"github.com/livekit/obs-watchdog/pkg/util"
	"github.com/livekit/protocol/logger"
)

// reportedError has already been shown to the user.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func launch(ctx context.Context, cmd *cli.Command) error {
	err := runLauncher(ctx, cmd)
	switch {
	case err == nil:
	case errors.Is(err, launcher.ErrInterpreterMissing), errors.Is(err, launcher.ErrDependencyInstallFailed):
		// the launcher printed instructions
		logger.Debugw("launch aborted", "kind", launcher.Kind(err), "error", err)
	default:
		fmt.Fprintln(stderr, util.Failed(err.Error()))
	}
	if isInteractive() && !cmd.Bool("no-pause") {
		launcher.Pause(stdin, stdout)
	}
	if err != nil {
		return reportedError{err}
	}
	return nil
}

func runLauncher(ctx context.Context, cmd *cli.Command) error {
	fmt.Fprintln(stdout, util.BannerStyle.Render("OBS Stream Watchdog Launcher"))
	fmt.Fprintln(stdout)

	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []launcher.Option{
		launcher.WithExecutor(newExecutor()),
		launcher.WithOutput(stdout),
	}
	if isInteractive() && !cmd.Bool("verbose") {
		opts = append(opts, launcher.WithProgress(util.Await))
	}

	res, err := launcher.New(launcherConfig(conf), opts...).Launch(ctx)
	if err != nil {
		if errors.Is(err, launcher.ErrInterpreterMissing) && cmd.Bool("open-download") {
			if oerr := openDownload(); oerr != nil {
				logger.Warnw("could not open browser", oerr)
			}
		}
		return err
	}

	logger.Debugw("launch finished", "stage", res.Stage.String(), "interpreter", res.Interpreter, "installAttempts", res.InstallAttempts)
	return nil
}
