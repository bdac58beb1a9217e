// cmd/serve.go

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/juicedata/godaemon"
	"github.com/urfave/cli/v2"

	"NJCrashes/pkg/chunk"
	"NJCrashes/pkg/njdot"
	"NJCrashes/pkg/server"
	"NJCrashes/pkg/utils"
)

func makeDaemon(c *cli.Context) {
	if godaemon.Stage() == 0 {
		utils.SetOutFile(c.String("log"))
	}
	_, _, err := godaemon.MakeDaemon(&godaemon.DaemonAttr{})
	if err != nil {
		logger.Fatalf("daemonize: %s", err)
	}
}

func logRusage(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	last := utils.GetRusage()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ru := utils.GetRusage()
			logger.Debugf("cpu usage: utime %.1fs stime %.1fs, peak rss %d MiB",
				ru.GetUtime()-last.GetUtime(), ru.GetStime()-last.GetStime(),
				ru.GetMaxRSS()>>20)
			last = ru
		}
	}
}

func serve(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("DATA-URI is needed")
	}
	uri := c.Args().Get(0)

	if c.Bool("d") {
		makeDaemon(c)
	}
	if err := agent.Listen(agent.Options{}); err != nil {
		logger.Warnf("gops agent: %s", err)
	}

	var dims *njdot.Dimensions
	if p := c.String("dims"); p != "" {
		var err error
		if dims, err = njdot.LoadDimensions(p); err != nil {
			logger.Fatalf("dimensions: %s", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var acc njdot.Accessor
	var store *chunk.Store
	var cache *njdot.ResultCache
	var err error
	if isRemote(uri) {
		if store, err = newSource(c, uri); err != nil {
			logger.Fatalf("open %s: %s", uri, err)
		}
		defer store.Close()
		if acc, err = njdot.OpenRemote(ctx, store); err != nil {
			logger.Fatalf("open %s: %s", uri, err)
		}
	} else {
		if acc, err = njdot.OpenSQL(uri); err != nil {
			logger.Fatalf("open %s: %s", uri, err)
		}
	}
	engine := njdot.NewEngine(acc)
	defer engine.Close()
	if store != nil {
		cache = njdot.NewResultCache(engine, c.Int("result-cache"))
	}

	go logRusage(ctx)
	srv := server.New(server.Config{Engine: engine, Dims: dims, Cache: cache, Chunks: store})
	logger.Infof("Serving %s ...", uri)
	return srv.Serve(ctx, c.String("addr"))
}

func serveFlags() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "serve the crash query API over HTTP",
		ArgsUsage: "DATA-URI",
		Action:    serve,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8200",
				Usage: "address to listen on",
			},
			&cli.StringFlag{
				Name:  "dims",
				Usage: "path of the county/municipality YAML maps",
			},
			&cli.IntFlag{
				Name:  "result-cache",
				Value: 1024,
				Usage: "max entries of the query result cache (remote sources only)",
			},
			&cli.BoolFlag{
				Name:    "d",
				Aliases: []string{"background"},
				Usage:   "run in background",
			},
			&cli.StringFlag{
				Name:  "log",
				Value: "/var/log/njcrashes.log",
				Usage: "path of log file when running in background",
			},
		}, sourceFlags()...),
	}
}
