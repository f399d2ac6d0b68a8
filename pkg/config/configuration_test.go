// Copyright 2024 Matrix Origin
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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/chainmap/pkg/common/malloc"
	"github.com/matrixorigin/chainmap/pkg/common/moerr"
	"github.com/matrixorigin/chainmap/pkg/container/hashtable"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "chainmap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[table]
initial-capacity = 100
load-factor = 0.5
treeify-threshold = 8
memory-limit = 1048576

[log]
level = "debug"
format = "json"

[bench]
key-kind = "uuid"
keys = 1000
remove-ratio = 0.25
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Table.InitialCapacity)
	require.Equal(t, 0.5, cfg.Table.LoadFactor)
	require.Equal(t, hashtable.DefaultUntreeifyThreshold, cfg.Table.UntreeifyThreshold)
	require.Equal(t, hashtable.DefaultMinTreeifyCapacity, cfg.Table.MinTreeifyCapacity)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, KeyKindUUID, cfg.Bench.KeyKind)
	require.Equal(t, 1000, cfg.Bench.Keys)
	require.Equal(t, defaultTables, cfg.Bench.Tables)
	require.Equal(t, 0.25, cfg.Bench.RemoveRatio)

	m, err := hashtable.NewComparable[string, int](cfg.Table.Options(malloc.NewGoAllocator())...)
	require.NoError(t, err)
	require.Equal(t, 128, m.Capacity())
	require.Equal(t, 0.5, m.LoadFactor())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoConfig))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	for _, content := range []string{
		"[table\n",
		"[table]\nload-factor = 2.0\n",
		"[table]\ninitial-capacity = -4\n",
		"[table]\ntreeify-threshold = 4\nuntreeify-threshold = 5\n",
		"[table]\nno-such-key = 1\n",
		"[log]\nformat = \"xml\"\n",
		"[bench]\nkey-kind = \"float\"\n",
		"[bench]\nremove-ratio = 1.5\n",
		"[bench]\nworkers = -1\n",
	} {
		_, err := LoadConfig(writeConfig(t, content))
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), "%q: %v", content, err)
	}
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 0, cfg.Table.TreeifyThreshold)

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	loaded, err := LoadConfig(writeConfig(t, buf.String()))
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestOptionsMemoryLimit(t *testing.T) {
	p := TableParameters{
		InitialCapacity: 16,
		LoadFactor:      0.75,
		MemoryLimit:     1,
	}
	_, err := hashtable.NewComparable[int, int](p.Options(malloc.NewGoAllocator())...)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM))

	// without an upstream the limit does not apply
	_, err = hashtable.NewComparable[int, int](p.Options(nil)...)
	require.NoError(t, err)
}
