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

package watchdog

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
)

const (
	DefaultWindowTitle = "OBS"
	// Alt+F9, the stream hotkey configured in OBS
	DefaultStreamHotkey = "%{F9}"
)

var ErrFallbackUnsupported = errors.New("keyboard fallback is only supported on Windows")

type Fallback interface {
	StartStream(ctx context.Context) error
}

type RunFunc func(ctx context.Context, name string, args ...string) error

// HotkeyFallback starts the stream by focusing the OBS window and sending
// the stream hotkey through a temporary VBScript.
type HotkeyFallback struct {
	WindowTitle string
	Keys        string

	goos string
	dir  string
	run  RunFunc
}

func NewHotkeyFallback() *HotkeyFallback {
	return &HotkeyFallback{
		WindowTitle: DefaultWindowTitle,
		Keys:        DefaultStreamHotkey,
		goos:        runtime.GOOS,
		dir:         os.TempDir(),
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (h *HotkeyFallback) StartStream(ctx context.Context) error {
	if h.goos != "windows" {
		return ErrFallbackUnsupported
	}

	f, err := os.CreateTemp(h.dir, "start_stream-*.vbs")
	if err != nil {
		return errors.Wrap(err, "could not create hotkey script")
	}
	scriptPath := f.Name()
	defer os.Remove(scriptPath)

	_, err = f.WriteString(hotkeyScript(h.WindowTitle, h.Keys))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "could not write hotkey script")
	}

	if err := h.run(ctx, "cscript", "//nologo", scriptPath); err != nil {
		return errors.Wrap(err, "hotkey script failed")
	}
	return nil
}

func hotkeyScript(windowTitle, keys string) string {
	return fmt.Sprintf(
		"Set WshShell = WScript.CreateObject(\"WScript.Shell\")\r\n"+
			"WshShell.AppActivate \"%s\"\r\n"+
			"WScript.Sleep 1000\r\n"+
			"WshShell.SendKeys \"%s\"\r\n",
		windowTitle, keys,
	)
}
