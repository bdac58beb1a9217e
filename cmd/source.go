// cmd/source.go

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"NJCrashes/pkg/chunk"
	"NJCrashes/pkg/fetch"
	"NJCrashes/pkg/version"
)

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

// sourceFlags are shared by every command that reads the data file
// through ranged fetches.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:  "chunk-size",
			Value: 64,
			Usage: "size of a fetch chunk in KiB",
		},
		&cli.Int64Flag{
			Name:  "buffer-size",
			Value: 64,
			Usage: "size of the in-memory chunk cache in MiB, 0 for unbounded",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "directory for the on-disk chunk cache, empty disables it",
		},
		&cli.Int64Flag{
			Name:  "cache-size",
			Value: 1024,
			Usage: "size limit of the on-disk chunk cache in MiB",
		},
		&cli.StringFlag{
			Name:  "compress",
			Value: "none",
			Usage: "compression algorithm for disk cached chunks (lz4, zstd, none)",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "redis URL for a shared chunk cache tier",
		},
		&cli.DurationFlag{
			Name:  "redis-ttl",
			Value: time.Hour * 24,
			Usage: "expiry of redis cached chunks",
		},
		&cli.IntFlag{
			Name:  "max-fetch",
			Value: 8,
			Usage: "max concurrent range fetches",
		},
		&cli.DurationFlag{
			Name:  "fetch-timeout",
			Value: time.Second * 30,
			Usage: "timeout of a single range fetch",
		},
		&cli.Int64Flag{
			Name:  "bwlimit",
			Usage: "download bandwidth limit in Mbps",
		},
	}
}

// newSource opens uri (file path, http(s) or sftp URL) as a chunked
// reader configured from the command line.
func newSource(c *cli.Context, uri string) (*chunk.Store, error) {
	fetch.UserAgent = "NJCrashes-" + version.Version()
	f, err := fetch.Open(uri, c.Duration("fetch-timeout"))
	if err != nil {
		return nil, err
	}
	if bw := c.Int64("bwlimit"); bw > 0 {
		f = fetch.NewLimited(f, bw<<20/8)
	}
	conf := chunk.DefaultConfig()
	conf.ChunkSize = int(c.Int64("chunk-size") << 10)
	conf.CacheSize = c.Int64("buffer-size") << 20
	conf.CacheDir = c.String("cache-dir")
	conf.DiskCacheSize = c.Int64("cache-size") << 20
	conf.Compress = c.String("compress")
	conf.Redis = c.String("redis")
	conf.RedisTTL = c.Duration("redis-ttl")
	conf.MaxFetch = c.Int("max-fetch")
	conf.FetchTimeout = c.Duration("fetch-timeout")
	return chunk.NewStore(f, conf)
}

// isRemote reports whether uri needs the ranged read path instead of
// the local SQLite driver.
func isRemote(uri string) bool {
	for _, scheme := range []string{"http://", "https://", "sftp://"} {
		if len(uri) > len(scheme) && uri[:len(scheme)] == scheme {
			return true
		}
	}
	return false
}
