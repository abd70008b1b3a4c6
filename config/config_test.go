package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qmgr/interrupts"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qmgr.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_valid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
silicon = "ixp46x"
livelock_prevention = false
steps = 250
seed = 42
db = "stats.db"
log_level = "debug"

[[queue]]
id = 3
size = 8
nearly_empty = 1
nearly_full = 6
priority = 0
source = "NOT_E"
class = "periodic"
rate = 0.25

[[queue]]
id = 50
size = 16
nearly_empty = 2
nearly_full = 12
`)
	c, err := Load(path)
	require.NoError(t, err)

	want := &Config{
		Silicon:           "ixp46x",
		UnclaimedLogEvery: Default().UnclaimedLogEvery,
		Steps:             250,
		Seed:              42,
		DB:                "stats.db",
		LogLevel:          "debug",
		Queues: []Queue{
			{ID: 3, Size: 8, NearlyEmpty: 1, NearlyFull: 6, Priority: 0, Source: "NOT_E", Class: "periodic", Rate: 0.25},
			{ID: 50, Size: 16, NearlyEmpty: 2, NearlyFull: 12},
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	src, err := c.Queues[1].SourceID()
	require.NoError(t, err)
	assert.Equal(t, interrupts.SourceNE, src)
	class, err := c.Queues[0].LivelockClass()
	require.NoError(t, err)
	assert.Equal(t, interrupts.Periodic, class)
}

func TestLoad_keepsDefaultQueues(t *testing.T) {
	c, err := Load(writeConfig(t, `steps = 5`))
	require.NoError(t, err)
	assert.Equal(t, Default().Queues, c.Queues)
	assert.Equal(t, 5, c.Steps)
}

func TestLoad_errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `steps = "many"`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `stepz = 3`))
	assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
}

func TestValidate(t *testing.T) {
	q := Queue{ID: 5, Size: 16, NearlyEmpty: 2, NearlyFull: 12}
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"silicon", func(c *Config) { c.Silicon = "ixp43x" }},
		{"steps", func(c *Config) { c.Steps = -1 }},
		{"id", func(c *Config) { c.Queues[0].ID = 64 }},
		{"negative id", func(c *Config) { c.Queues[0].ID = -1 }},
		{"geometry", func(c *Config) { c.Queues[0].NearlyFull = 1 }},
		{"priority", func(c *Config) { c.Queues[0].Priority = 3 }},
		{"rate", func(c *Config) { c.Queues[0].Rate = 1.5 }},
		{"source", func(c *Config) { c.Queues[0].Source = "HALF" }},
		{"class", func(c *Config) { c.Queues[0].Class = "bursty" }},
		{"high source", func(c *Config) { c.Queues[0].ID = 40; c.Queues[0].Source = "F" }},
		{"high class", func(c *Config) { c.Queues[0].ID = 40; c.Queues[0].Class = "periodic" }},
		{"duplicate", func(c *Config) { c.Queues = append(c.Queues, c.Queues[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Queues = []Queue{q}
			require.NoError(t, c.Validate())

			tt.modify(c)
			err := c.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}
