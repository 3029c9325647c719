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

package config

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/livekit/obs-watchdog/pkg/util"
	"github.com/livekit/protocol/logger"
)

const (
	ConfigFile  = "obs-watchdog.toml"
	DotEnvFile  = ".env"
	DefaultHost = "localhost"
	DefaultPort = 4444

	DefaultPackage = "websocket-client"
	DefaultScript  = "obs-watchdog-websocket.py"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration file")
)

type Config struct {
	Launcher LauncherConfig `toml:"launcher" yaml:"launcher"`
	OBS      OBSConfig      `toml:"obs" yaml:"obs"`
	Watchdog WatchdogConfig `toml:"watchdog" yaml:"watchdog"`
}

type LauncherConfig struct {
	// interpreter names tried in order on PATH
	Interpreters []string `toml:"interpreters" yaml:"interpreters"`
	Package      string   `toml:"package" yaml:"package"`
	Script       string   `toml:"script" yaml:"script"`
	// optional semver constraint on the interpreter version, e.g. ">= 3.8"
	PythonVersion string `toml:"python_version,omitempty" yaml:"python_version,omitempty"`
	// skip pip install when pip show reports the package
	SkipInstalled bool `toml:"skip_installed" yaml:"skip_installed"`
}

type OBSConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Password string `toml:"password,omitempty" yaml:"password,omitempty"`
	// process image names (glob patterns) that identify a running OBS
	ProcessNames []string `toml:"process_names" yaml:"process_names"`
}

type WatchdogConfig struct {
	CheckInterval    time.Duration `toml:"check_interval" yaml:"check_interval"`
	ConnectTimeout   time.Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	StatusTimeout    time.Duration `toml:"status_timeout" yaml:"status_timeout"`
	RestartCooldown  time.Duration `toml:"restart_cooldown" yaml:"restart_cooldown"`
	StatsInterval    time.Duration `toml:"stats_interval" yaml:"stats_interval"`
	KeyboardFallback bool          `toml:"keyboard_fallback" yaml:"keyboard_fallback"`
}

func Default() *Config {
	return &Config{
		Launcher: LauncherConfig{
			Interpreters:  DefaultInterpreters(runtime.GOOS),
			Package:       DefaultPackage,
			Script:        DefaultScript,
			SkipInstalled: true,
		},
		OBS: OBSConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ProcessNames: DefaultProcessNames(runtime.GOOS),
		},
		Watchdog: WatchdogConfig{
			CheckInterval:    10 * time.Second,
			ConnectTimeout:   5 * time.Second,
			StatusTimeout:    2 * time.Second,
			StatsInterval:    10 * time.Minute,
			KeyboardFallback: true,
		},
	}
}

// Interpreter names tried in order for goos.
func DefaultInterpreters(goos string) []string {
	if goos == "windows" {
		return []string{"python", "py"}
	}
	return []string{"python3", "python"}
}

func DefaultProcessNames(goos string) []string {
	if goos == "windows" {
		return []string{"obs64.exe", "obs32.exe", "obs.exe"}
	}
	return []string{"obs", "obs-studio", "OBS"}
}

// Load reads the config file at path, layered over the defaults. When the
// file does not exist and required is false, the defaults are returned.
func Load(path string, required bool) (*Config, bool, error) {
	c := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if required {
			return nil, false, errors.Wrapf(err, "config file %s", path)
		}
		logger.Debugw("no config file found, using defaults", "path", path)
		return c, false, nil
	} else if err != nil {
		return nil, false, err
	}

	logger.Debugw(fmt.Sprintf("loading %s file", path))
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, true, err
	}
	if err := c.decode(filepath.Ext(path), content); err != nil {
		return nil, true, errors.Wrapf(ErrInvalidConfig, "%s: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, true, err
	}
	return c, true, nil
}

func (c *Config) decode(ext string, content []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, c)
	default:
		_, err := toml.Decode(string(content), c)
		return err
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the .env file in dir into the
// process environment. Variables that are already set win.
func LoadDotEnv(dir string) error {
	envPath := filepath.Join(dir, DotEnvFile)
	if _, err := os.Stat(envPath); err != nil {
		return nil
	}
	logger.Debugw("loading environment file", "path", envPath)
	return godotenv.Load(envPath)
}

func (c *Config) Validate() error {
	if len(c.Launcher.Interpreters) == 0 {
		return errors.Wrap(ErrInvalidConfig, "launcher.interpreters cannot be empty")
	}
	if strings.TrimSpace(c.Launcher.Package) == "" {
		return errors.Wrap(ErrInvalidConfig, "launcher.package cannot be empty")
	}
	if strings.TrimSpace(c.Launcher.Script) == "" {
		return errors.Wrap(ErrInvalidConfig, "launcher.script cannot be empty")
	}
	if c.Launcher.PythonVersion != "" {
		if _, err := semver.NewConstraint(c.Launcher.PythonVersion); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "launcher.python_version: %v", err)
		}
	}
	if c.OBS.Host == "" {
		return errors.Wrap(ErrInvalidConfig, "obs.host cannot be empty")
	}
	if c.OBS.Port <= 0 || c.OBS.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "obs.port %d out of range", c.OBS.Port)
	}
	if len(c.OBS.ProcessNames) == 0 {
		return errors.Wrap(ErrInvalidConfig, "obs.process_names cannot be empty")
	}
	if c.Watchdog.CheckInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "watchdog.check_interval must be positive")
	}
	if c.Watchdog.ConnectTimeout <= 0 {
		return errors.Wrap(ErrInvalidConfig, "watchdog.connect_timeout must be positive")
	}
	if c.Watchdog.StatusTimeout < 0 || c.Watchdog.RestartCooldown < 0 || c.Watchdog.StatsInterval < 0 {
		return errors.Wrap(ErrInvalidConfig, "watchdog durations cannot be negative")
	}
	return nil
}

func (c *OBSConfig) URL() string {
	return "ws://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Encode writes the configuration as TOML with the password masked.
func (c *Config) Encode(w io.Writer) error {
	masked := *c
	masked.OBS.Password = util.Mask(c.OBS.Password)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(masked); err != nil {
		return fmt.Errorf("error encoding TOML: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
