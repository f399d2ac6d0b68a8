// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"io"
	"math"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
	"github.com/matrixorigin/chainmap/pkg/container/hashtable"
	"github.com/matrixorigin/chainmap/pkg/logutil"
)

const (
	KeyKindInt  = "int"
	KeyKindUUID = "uuid"
)

var (
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
	defaultMaxSize   = 512

	defaultKeyKind = KeyKindInt
	defaultKeys    = 100000
	defaultTables  = 4
	defaultWorkers = 4
)

// Config is the toml configuration of the hashtable tools.
type Config struct {
	Table TableParameters   `toml:"table"`
	Log   logutil.LogConfig `toml:"log"`
	Bench BenchParameters   `toml:"bench"`
}

// TableParameters are the construction options of every table.
type TableParameters struct {
	InitialCapacity int     `toml:"initial-capacity"`
	LoadFactor      float64 `toml:"load-factor"`

	// TreeifyThreshold of 0 keeps every bucket a plain chain.
	TreeifyThreshold   int `toml:"treeify-threshold"`
	UntreeifyThreshold int `toml:"untreeify-threshold"`
	MinTreeifyCapacity int `toml:"min-treeify-capacity"`

	// MemoryLimit caps the bucket array bytes of one table. 0 is unlimited.
	MemoryLimit uint64 `toml:"memory-limit"`
}

// BenchParameters describe the workload of hashtable-bench.
type BenchParameters struct {
	// KeyKind is int or uuid.
	KeyKind string `toml:"key-kind"`
	// Collide gives the int keys hashes that share their low bits.
	Collide     bool    `toml:"collide"`
	Keys        int     `toml:"keys"`
	Tables      int     `toml:"tables"`
	Workers     int     `toml:"workers"`
	RemoveRatio float64 `toml:"remove-ratio"`
}

// DefaultConfig returns a Config with every field set.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Bench.RemoveRatio = 0.5
	cfg.Adjust()
	return cfg
}

// LoadConfig decodes, adjusts and validates the file at path. Unknown keys
// are rejected.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, moerr.NewNoConfig(moerr.Context(), "config file path")
	}
	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, moerr.NewBadConfigNoCtx("decode %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, moerr.NewBadConfigNoCtx("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Adjust fills the fields left empty with their defaults.
func (c *Config) Adjust() {
	if c.Table.InitialCapacity == 0 {
		c.Table.InitialCapacity = hashtable.DefaultInitialCapacity
	}
	if c.Table.LoadFactor == 0 {
		c.Table.LoadFactor = hashtable.DefaultLoadFactor
	}
	if c.Table.TreeifyThreshold > 0 {
		if c.Table.UntreeifyThreshold == 0 {
			c.Table.UntreeifyThreshold = hashtable.DefaultUntreeifyThreshold
		}
		if c.Table.MinTreeifyCapacity == 0 {
			c.Table.MinTreeifyCapacity = hashtable.DefaultMinTreeifyCapacity
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = defaultMaxSize
	}

	if c.Bench.KeyKind == "" {
		c.Bench.KeyKind = defaultKeyKind
	}
	if c.Bench.Keys == 0 {
		c.Bench.Keys = defaultKeys
	}
	if c.Bench.Tables == 0 {
		c.Bench.Tables = defaultTables
	}
	if c.Bench.Workers == 0 {
		c.Bench.Workers = defaultWorkers
	}
}

func (c *Config) Validate() error {
	if err := hashtable.CheckOptions(c.Table.Options(nil)...); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return moerr.NewBadConfigNoCtx("unsupported log format %q", c.Log.Format)
	}

	switch c.Bench.KeyKind {
	case KeyKindInt, KeyKindUUID:
	default:
		return moerr.NewBadConfigNoCtx("unsupported key kind %q", c.Bench.KeyKind)
	}
	if c.Bench.Keys <= 0 || c.Bench.Tables <= 0 || c.Bench.Workers <= 0 {
		return moerr.NewBadConfigNoCtx("keys %d, tables %d and workers %d must be positive",
			c.Bench.Keys, c.Bench.Tables, c.Bench.Workers)
	}
	if math.IsNaN(c.Bench.RemoveRatio) || c.Bench.RemoveRatio < 0 || c.Bench.RemoveRatio > 1 {
		return moerr.NewBadConfigNoCtx("remove ratio %v must be in [0, 1]", c.Bench.RemoveRatio)
	}
	return nil
}

// Encode writes c as toml.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Options maps the parameters to table options. A non-nil upstream is
// wrapped with the memory limit, if any, and used as the table allocator.
func (p *TableParameters) Options(upstream malloc.Allocator) []hashtable.Option {
	opts := []hashtable.Option{
		hashtable.WithInitialCapacity(p.InitialCapacity),
		hashtable.WithLoadFactor(p.LoadFactor),
	}
	if p.TreeifyThreshold != 0 {
		opts = append(opts, hashtable.WithTreeify(
			p.TreeifyThreshold,
			p.UntreeifyThreshold,
			p.MinTreeifyCapacity,
		))
	}
	if upstream != nil {
		var a malloc.Allocator = upstream
		if p.MemoryLimit > 0 {
			a = malloc.NewLimitAllocator(upstream, p.MemoryLimit)
		}
		opts = append(opts, hashtable.WithAllocator(a))
	}
	return opts
}
