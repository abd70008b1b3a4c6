// Package config loads the simulator configuration from a TOML file.
package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"qmgr/interrupts"
)

// Queue describes one simulated hardware queue and its notification setup
type Queue struct {
	ID          int    `toml:"id"`
	Size        int    `toml:"size"`
	NearlyEmpty int    `toml:"nearly_empty"`
	NearlyFull  int    `toml:"nearly_full"`
	Priority    int    `toml:"priority"`
	Source      string `toml:"source"`
	Class       string `toml:"class"`
	// Rate is the chance, per simulation step, of an entry being pushed
	Rate float64 `toml:"rate"`
}

// Config of a simulator run
type Config struct {
	Silicon            string  `toml:"silicon"`
	LivelockPrevention bool    `toml:"livelock_prevention"`
	UnclaimedLogEvery  uint64  `toml:"unclaimed_log_every"`
	Steps              int     `toml:"steps"`
	Seed               int64   `toml:"seed"`
	DB                 string  `toml:"db"`
	LogFile            string  `toml:"log_file"`
	LogLevel           string  `toml:"log_level"`
	Queues             []Queue `toml:"queue"`
}

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Default returns the built-in workload: a periodic receive queue, two
// sporadic queues, a transmit done queue and two high group queues.
func Default() *Config {
	return &Config{
		Silicon:            "ixp42x-b0",
		LivelockPrevention: true,
		UnclaimedLogEvery:  1000,
		Steps:              10000,
		Seed:               1,
		LogLevel:           "info",
		Queues: []Queue{
			{ID: 4, Size: 64, NearlyEmpty: 4, NearlyFull: 48, Priority: 0, Source: "NOT_E", Class: "periodic", Rate: 0.5},
			{ID: 6, Size: 32, NearlyEmpty: 2, NearlyFull: 24, Priority: 1, Source: "NOT_E", Class: "sporadic", Rate: 0.05},
			{ID: 7, Size: 32, NearlyEmpty: 2, NearlyFull: 24, Priority: 1, Source: "NOT_E", Class: "sporadic", Rate: 0.05},
			{ID: 20, Size: 16, NearlyEmpty: 2, NearlyFull: 12, Priority: 2, Source: "NF", Class: "other", Rate: 0.2},
			{ID: 33, Size: 16, NearlyEmpty: 4, NearlyFull: 12, Priority: 1, Source: "NE", Rate: 0.1},
			{ID: 40, Size: 16, NearlyEmpty: 4, NearlyFull: 12, Priority: 0, Source: "NE", Rate: 0.1},
		},
	}
}

// Load reads a TOML file on top of the defaults. A file with queues
// replaces the default queue list.
func Load(path string) (*Config, error) {
	c := Default()
	c.Queues = nil

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q: %w", path, keys[0].String(), ErrInvalid)
	}
	if len(c.Queues) == 0 {
		c.Queues = Default().Queues
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks ranges and names. Errors wrap ErrInvalid.
func (c *Config) Validate() error {
	if _, err := interrupts.ParseSilicon(c.Silicon); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Steps < 0 {
		return fmt.Errorf("%w: negative steps %d", ErrInvalid, c.Steps)
	}

	seen := make(map[int]bool)
	for _, q := range c.Queues {
		if err := q.validate(); err != nil {
			return fmt.Errorf("%w: queue %d: %v", ErrInvalid, q.ID, err)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: queue %d listed twice", ErrInvalid, q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}

func (q Queue) validate() error {
	id := interrupts.QueueID(q.ID)
	if !id.Valid() {
		return errors.New("id out of range")
	}
	if q.Size <= 0 || q.NearlyEmpty < 0 || q.NearlyFull > q.Size || q.NearlyEmpty >= q.NearlyFull {
		return fmt.Errorf("bad geometry size=%d nearly_empty=%d nearly_full=%d", q.Size, q.NearlyEmpty, q.NearlyFull)
	}
	if !interrupts.Priority(q.Priority).Valid() {
		return fmt.Errorf("priority %d out of range", q.Priority)
	}
	if q.Rate < 0 || q.Rate > 1 {
		return fmt.Errorf("rate %v not in [0,1]", q.Rate)
	}

	src, err := q.SourceID()
	if err != nil {
		return err
	}
	if id.Group() == interrupts.HighGroup {
		if src != interrupts.SourceNE {
			return fmt.Errorf("source %s, high group queues only support NE", src)
		}
		if q.Class != "" && q.Class != "other" {
			return fmt.Errorf("class %q on a high group queue", q.Class)
		}
		return nil
	}
	_, err = q.LivelockClass()
	return err
}

// QueueID returns the queue id
func (q Queue) QueueID() interrupts.QueueID {
	return interrupts.QueueID(q.ID)
}

// SourceID parses the interrupt source, NE when unset
func (q Queue) SourceID() (interrupts.SourceID, error) {
	if q.Source == "" {
		return interrupts.SourceNE, nil
	}
	return interrupts.ParseSourceID(q.Source)
}

// LivelockClass parses the livelock class, other when unset
func (q Queue) LivelockClass() (interrupts.LivelockClass, error) {
	if q.Class == "" {
		return interrupts.Other, nil
	}
	return interrupts.ParseLivelockClass(q.Class)
}
