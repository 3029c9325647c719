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
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"

	obswatchdog "github.com/livekit/obs-watchdog"
	"github.com/livekit/obs-watchdog/pkg/config"
	"github.com/livekit/obs-watchdog/pkg/launcher"
)

func main() {
	app := &cli.Command{
		Name:                   "obs-watchdog",
		Usage:                  "Keep an OBS stream live",
		Description:            "Without a command, checks for Python, installs websocket-client and starts the watchdog script. Use `watch` to run the watchdog natively.",
		Version:                obswatchdog.Version,
		Suggest:                true,
		HideHelpCommand:        true,
		UseShortOptionHandling: true,
		Flags:                  newGlobalFlags(),
		Action:                 launch,
		Before:                 initLogger,
	}

	app.Commands = append(app.Commands, WatchCommands...)
	app.Commands = append(app.Commands, ConfigCommands...)

	// Register cleanup hook for SIGINT, SIGTERM, SIGQUIT
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	// flag sources read the environment, so .env has to be loaded first
	if err := config.LoadDotEnv(workingDir); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: could not load %s: %v\n", config.DotEnvFile, err)
	}

	if err := app.Run(ctx, os.Args); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(launcher.ExitCode(err))
	}
}

func initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logConfig := &logger.Config{
		Level: "info",
	}
	if cmd.Bool("verbose") {
		logConfig.Level = "debug"
	}
	logger.InitFromConfig(logConfig, "obs-watchdog")

	return nil, nil
}
