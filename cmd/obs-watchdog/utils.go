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
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/livekit/obs-watchdog/pkg/config"
	"github.com/livekit/obs-watchdog/pkg/launcher"
	"github.com/livekit/obs-watchdog/pkg/util"
)

var (
	workingDir     = "."
	configFilename = config.ConfigFile

	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	isInteractive = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	newExecutor = func() launcher.Executor {
		return launcher.NewOSExecutor()
	}
	openDownload = util.OpenPythonDownload
)

// Flags keep parse state, so every command gets its own instances.
func newGlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Config `FILE` (TOML or YAML)",
			Value:       config.ConfigFile,
			Destination: &configFilename,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "no-pause",
			Usage: "Do not wait for Enter before exiting",
		},
		util.OpenDownloadFlag(),
	}
}

func newOBSFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "OBS WebSocket `HOST`",
			Sources: cli.EnvVars("OBS_WEBSOCKET_HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "OBS WebSocket `PORT`",
			Sources: cli.EnvVars("OBS_WEBSOCKET_PORT"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "OBS WebSocket `PASSWORD`",
			Sources: cli.EnvVars("OBS_WEBSOCKET_PASSWORD"),
		},
	}
}

// Load the config file, then apply flag and environment overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	conf, _, err := config.Load(configFilename, cmd.IsSet("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		conf.OBS.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		conf.OBS.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("password") {
		conf.OBS.Password = cmd.String("password")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func launcherConfig(c *config.Config) launcher.Config {
	return launcher.Config{
		Interpreters:  c.Launcher.Interpreters,
		Package:       c.Launcher.Package,
		Script:        c.Launcher.Script,
		PythonVersion: c.Launcher.PythonVersion,
		SkipInstalled: c.Launcher.SkipInstalled,
	}
}
