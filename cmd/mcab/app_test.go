package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region/regiontest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  loadThreads: 1\n  processThreads: 2\n  writeThreads: 1\nlog:\n  level: error\n"), 0o644))
	return path
}

func TestFieldsCommand(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	require.NoError(t, app.Run([]string{"mcab", "fields"}))

	assert.Contains(t, out.String(), "InhabitedTime")
	assert.Contains(t, out.String(), "!contains")
	assert.Contains(t, out.String(), "finalized")
}

func TestExportCommand(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	for _, c := range []region.Coordinate{{X: 0, Z: 0}, {X: 2, Z: 0}} {
		regiontest.WriteFile(t, src, c, regiontest.Full(c, "full"))
	}

	err := newApp().Run([]string{"mcab", "--config", writeConfig(t), "export",
		"--world", src, "--dest", dst, "--filter", "xPos < 32"})
	require.NoError(t, err)

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r.0.0.mca", entries[0].Name())
	assert.Equal(t, region.SlotCount, regiontest.ReadFile(t, filepath.Join(dst, "r.0.0.mca")).Count())
}

func TestChangeCommandRejectsBadInput(t *testing.T) {
	src := t.TempDir()
	err := newApp().Run([]string{"mcab", "--config", writeConfig(t), "change",
		"--world", src, "--set", "Status = cooked"})
	assert.Error(t, err)

	err = newApp().Run([]string{"mcab", "--config", writeConfig(t), "delete",
		"--world", src, "--filter", "xPos ="})
	assert.Error(t, err)
}

func TestMissingWorld(t *testing.T) {
	err := newApp().Run([]string{"mcab", "--config", writeConfig(t), "delete"})
	assert.Error(t, err)
}
