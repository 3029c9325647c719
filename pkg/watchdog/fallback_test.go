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
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotkeyFallbackWindows(t *testing.T) {
	dir := t.TempDir()
	var script, scriptPath string
	h := NewHotkeyFallback()
	h.goos = "windows"
	h.dir = dir
	h.run = func(ctx context.Context, name string, args ...string) error {
		require.Equal(t, "cscript", name)
		require.Len(t, args, 2)
		assert.Equal(t, "//nologo", args[0])
		scriptPath = args[1]
		content, err := os.ReadFile(scriptPath)
		require.NoError(t, err)
		script = string(content)
		return nil
	}

	require.NoError(t, h.StartStream(context.Background()))
	assert.Contains(t, script, `WshShell.AppActivate "OBS"`)
	assert.Contains(t, script, `WshShell.SendKeys "%{F9}"`)

	_, err := os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(err), "temporary script should be removed")
}

func TestHotkeyFallbackRunError(t *testing.T) {
	h := NewHotkeyFallback()
	h.goos = "windows"
	h.dir = t.TempDir()
	h.run = func(context.Context, string, ...string) error {
		return errors.New("cscript not found")
	}
	require.Error(t, h.StartStream(context.Background()))
}

func TestHotkeyFallbackUnsupported(t *testing.T) {
	h := NewHotkeyFallback()
	h.goos = "linux"
	require.ErrorIs(t, h.StartStream(context.Background()), ErrFallbackUnsupported)
}
