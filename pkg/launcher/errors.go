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
	"github.com/pkg/errors"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

var (
	ErrInterpreterMissing      = errors.New("interpreter not found")
	ErrDependencyInstallFailed = errors.New("dependency installation failed")
)

// ExitCode maps the outcome of a launch to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFailure
}

// Kind names the failure for log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInterpreterMissing):
		return "InterpreterMissing"
	case errors.Is(err, ErrDependencyInstallFailed):
		return "DependencyInstallFailed"
	default:
		return "Unknown"
	}
}
