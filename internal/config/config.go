// Package config centralizes the runtime knobs every daemon binds from
// flags, environment variables and (optionally) a config file, using
// viper the way the rest of this module's ambient stack leans on the
// spf13 ecosystem for its CLI layer.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// / Config_t holds every tunable named in §6: RMEM's block geometry,
// / RCACHE's line count and default policy, SHM's table limits, and the
// / MINIX filesystem's inode/file table sizes and disk geometry.
type Config_t struct {
	RmemNumBlocks         int
	RmemBlockSize         int
	RmemServersNum        int
	RcacheLength          int
	RcacheDefaultReplacement string

	ShmMax      int
	ShmOpenMax  int
	ShmNameMax  int
	ShmSizeMax  int

	NanvixNrInodes  int
	NanvixNrFiles   int
	NanvixFsBlockSize int
	NanvixDiskSize  int
}

// / defaults mirror the original's compile-time constants, scaled down
// / to values convenient for in-memory test and demo deployments.
var defaults = map[string]interface{}{
	"rmem_num_blocks":            4096,
	"rmem_block_size":            4096,
	"rmem_servers_num":           1,
	"rcache_length":              64,
	"rcache_default_replacement": "fifo",

	"nanvix_shm_max":      64,
	"nanvix_shm_open_max": 16,
	"nanvix_shm_name_max": 32,
	"nanvix_shm_size_max": 4096,

	"nanvix_nr_inodes":    128,
	"nanvix_nr_files":     64,
	"nanvix_fs_block_size": 1024,
	"nanvix_disk_size":    16384,
}

// / Load builds a Config_t from defaults, an optional config file named
// / cfgFile (skipped if empty), and NANVIX_-prefixed environment
// / variables, in that order of increasing precedence.
func Load(cfgFile string) (*Config_t, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("nanvix")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &Config_t{
		RmemNumBlocks:            v.GetInt("rmem_num_blocks"),
		RmemBlockSize:            v.GetInt("rmem_block_size"),
		RmemServersNum:           v.GetInt("rmem_servers_num"),
		RcacheLength:             v.GetInt("rcache_length"),
		RcacheDefaultReplacement: v.GetString("rcache_default_replacement"),

		ShmMax:     v.GetInt("nanvix_shm_max"),
		ShmOpenMax: v.GetInt("nanvix_shm_open_max"),
		ShmNameMax: v.GetInt("nanvix_shm_name_max"),
		ShmSizeMax: v.GetInt("nanvix_shm_size_max"),

		NanvixNrInodes:    v.GetInt("nanvix_nr_inodes"),
		NanvixNrFiles:     v.GetInt("nanvix_nr_files"),
		NanvixFsBlockSize: v.GetInt("nanvix_fs_block_size"),
		NanvixDiskSize:    v.GetInt("nanvix_disk_size"),
	}, nil
}
