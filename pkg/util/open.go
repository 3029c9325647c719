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

package util

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/urfave/cli/v3"
)

const (
	PythonDownloadURL = "https://www.python.org/downloads/"
)

func OpenDownloadFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "open-download",
		Usage: "Open the Python download page in a browser when no interpreter is found",
	}
}

func OpenPythonDownload() error {
	if err := browser.OpenURL(PythonDownloadURL); err != nil {
		return fmt.Errorf("failed to open download page: %w", err)
	}
	return nil
}
