package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "export", "seed", "migrate"} {
		assert.True(t, names[want], want)
	}
}

func TestExportCmd_RequiresDevice(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"export", "--start", "2024-01-01", "--end", "2024-01-02"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device")
}

func TestExportCmd_UnknownDeviceInMemoryMode(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd()
	root.SetArgs([]string{"export", "--device", "ESP32_001", "--out", "-"})

	err := root.Execute()
	assert.ErrorContains(t, err, "device not found")
}

func TestMigrateCmd_NeedsDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	assert.ErrorContains(t, root.Execute(), "database.driver")
}
