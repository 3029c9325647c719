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
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var pythonVersionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?(?:([a-z]+)(\d*))?`)

func versionCommand(interpreter string) Command {
	return Command{Name: interpreter, Args: []string{"--version"}, Quiet: true}
}

func showCommand(interpreter, pkg string) Command {
	return Command{Name: interpreter, Args: []string{"-m", "pip", "show", pkg}, Quiet: true}
}

func installCommand(interpreter, pkg string, quiet bool) Command {
	return Command{Name: interpreter, Args: []string{"-m", "pip", "install", pkg}, Quiet: quiet}
}

func scriptCommand(interpreter, script string) Command {
	return Command{Name: interpreter, Args: []string{script}}
}

// parsePythonVersion extracts the version from `python --version` output,
// e.g. "Python 3.13.0rc1" becomes 3.13.0-rc1.
func parsePythonVersion(output string) (*semver.Version, error) {
	m := pythonVersionPattern.FindStringSubmatch(strings.TrimSpace(output))
	if m == nil {
		return nil, fmt.Errorf("unrecognized version output: %q", strings.TrimSpace(output))
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	normalized := fmt.Sprintf("%s.%s.%s", m[1], m[2], patch)
	if m[4] != "" {
		normalized += "-" + m[4] + m[5]
	}
	return semver.NewVersion(normalized)
}
