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
	"time"

	"github.com/urfave/cli/v3"

	"github.com/livekit/obs-watchdog/pkg/util"
	"github.com/livekit/obs-watchdog/pkg/watchdog"
	"github.com/livekit/protocol/logger"
)

var (
	WatchCommands = []*cli.Command{
		{
			Name:   "watch",
			Usage:  "Monitor OBS and restart the stream when it stops",
			Action: watch,
			Flags: append(newOBSFlags(),
				&cli.DurationFlag{
					Name:  "interval",
					Usage: "`DURATION` between checks",
				},
				&cli.DurationFlag{
					Name:  "cooldown",
					Usage: "Minimum `DURATION` between restart attempts",
				},
				&cli.BoolFlag{
					Name:  "no-fallback",
					Usage: "Never send the stream hotkey when the WebSocket is unavailable",
				},
			),
		},
	}
)

func watch(ctx context.Context, cmd *cli.Command) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("interval") {
		conf.Watchdog.CheckInterval = cmd.Duration("interval")
	}
	if cmd.IsSet("cooldown") {
		conf.Watchdog.RestartCooldown = cmd.Duration("cooldown")
	}
	if cmd.Bool("no-fallback") {
		conf.Watchdog.KeyboardFallback = false
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	prober, err := watchdog.NewProcessProber(conf.OBS.ProcessNames)
	if err != nil {
		return err
	}

	fmt.Println(util.BannerStyle.Render("OBS Stream Watchdog - WebSocket Version"))
	fmt.Println(util.Dimmed("Started at: " + time.Now().Format(time.DateTime)))
	fmt.Println(util.Dimmed("Press Ctrl+C to stop"))
	fmt.Println()

	log := logger.GetLogger()
	w := watchdog.New(
		watchdog.Config{
			CheckInterval:    conf.Watchdog.CheckInterval,
			ConnectTimeout:   conf.Watchdog.ConnectTimeout,
			StatusTimeout:    conf.Watchdog.StatusTimeout,
			RestartCooldown:  conf.Watchdog.RestartCooldown,
			StatsInterval:    conf.Watchdog.StatsInterval,
			KeyboardFallback: conf.Watchdog.KeyboardFallback,
		},
		watchdog.DialOBS(conf.OBS.URL(), conf.OBS.Password, conf.Watchdog.ConnectTimeout, log),
		prober,
		watchdog.WithLogger(log),
	)
	return w.Run(ctx)
}
