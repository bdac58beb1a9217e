// cmd/warm.go

package main

import (
	"context"
	"sync"

	"github.com/urfave/cli/v2"

	"NJCrashes/pkg/utils"
)

func warm(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("DATA-URI is needed")
	}
	uri := c.Args().Get(0)
	if !isRemote(uri) {
		logger.Fatalf("%s is local, nothing to warm", uri)
	}
	store, err := newSource(c, uri)
	if err != nil {
		logger.Fatalf("open %s: %s", uri, err)
	}
	defer store.Close()

	ctx := context.Background()
	size, err := store.Size(ctx)
	if err != nil {
		logger.Fatalf("probe size: %s", err)
	}

	// span per worker task, large enough to let the reader coalesce
	span := c.Int64("chunk-size") << 10 * 16
	var spans []int64
	for off := int64(0); off < size; off += span {
		spans = append(spans, off)
	}

	progress, bar := utils.NewDynProgressBar("warming: ", c.Bool("quiet"))
	bar.SetTotal(int64(len(spans)), false)

	var failed int64
	var mu sync.Mutex
	tasks := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < c.Int("threads"); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for off := range tasks {
				length := span
				if off+length > size {
					length = size - off
				}
				if err := store.FillRange(ctx, off, length); err != nil {
					logger.Warnf("fill [%d,%d): %s", off, off+length, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
				bar.Increment()
			}
		}()
	}
	for _, off := range spans {
		tasks <- off
	}
	close(tasks)
	wg.Wait()
	bar.SetTotal(0, true)
	progress.Wait()

	st := store.Stats()
	logger.Infof("warmed %d bytes in %d fetches, %d spans failed", st.FetchedBytes, st.Fetches, failed)
	return nil
}

func warmFlags() *cli.Command {
	return &cli.Command{
		Name:      "warm",
		Usage:     "prefetch a remote data file into the local caches",
		ArgsUsage: "DATA-URI",
		Action:    warm,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"p"},
				Value:   4,
				Usage:   "number of concurrent workers",
			},
		}, sourceFlags()...),
	}
}
