// cmd/query.go

package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"NJCrashes/pkg/njdot"
)

func query(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("DATA-URI is needed")
	}
	uri := c.Args().Get(0)
	ctx := context.Background()

	var acc njdot.Accessor
	var err error
	if isRemote(uri) {
		store, err := newSource(c, uri)
		if err != nil {
			logger.Fatalf("open %s: %s", uri, err)
		}
		defer func() {
			st := store.Stats()
			logger.Debugf("chunk reader: %d hits, %d misses, %d fetches, %d bytes fetched",
				st.CacheHits, st.CacheMisses, st.Fetches, st.FetchedBytes)
			_ = store.Close()
		}()
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

	f := njdot.Filter{County: c.Int("cc"), Municipality: c.Int("mc")}
	if c.Bool("years") {
		stats, err := engine.YearStats(ctx, f)
		if err != nil {
			return err
		}
		totals, err := engine.Totals(ctx, f)
		if err != nil {
			return err
		}
		printJson(njdot.Reconcile(stats, totals))
		return nil
	}
	if c.Bool("totals") {
		totals, err := engine.Totals(ctx, f)
		if err != nil {
			return err
		}
		printJson(totals)
		return nil
	}
	page, err := engine.CrashPage(ctx, f, njdot.Pagination{
		Page:    c.Int("page"),
		PerPage: c.Int("per-page"),
	})
	if err != nil {
		return err
	}
	printJson(page)
	return nil
}

func queryFlags() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "run one query against a data file and print the result",
		ArgsUsage: "DATA-URI",
		Action:    query,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "cc",
				Usage: "county code, 0 for statewide",
			},
			&cli.IntFlag{
				Name:  "mc",
				Usage: "municipality code, 0 for county-wide",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "zero-based page number",
			},
			&cli.IntFlag{
				Name:  "per-page",
				Value: njdot.DefaultPerPage,
				Usage: "rows per page",
			},
			&cli.BoolFlag{
				Name:  "years",
				Usage: "print the reconciled yearly series instead of crash rows",
			},
			&cli.BoolFlag{
				Name:  "totals",
				Usage: "print the all-years totals instead of crash rows",
			},
		}, sourceFlags()...),
	}
}
