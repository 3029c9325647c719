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

type Stage int

const (
	StageStart Stage = iota
	StageCheckInterpreter
	StageInstallDependency
	StageRunScript
	StageEnd
	StageAbort
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StageCheckInterpreter:
		return "CHECK_INTERPRETER"
	case StageInstallDependency:
		return "INSTALL_DEPENDENCY"
	case StageRunScript:
		return "RUN_SCRIPT"
	case StageEnd:
		return "END"
	case StageAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

func (s Stage) Terminal() bool {
	return s == StageEnd || s == StageAbort
}
