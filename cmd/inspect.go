// cmd/inspect.go

package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"NJCrashes/pkg/sqlite"
)

type inspection struct {
	PageSize  int                  `json:"page_size"`
	PageCount uint32               `json:"page_count"`
	Size      int64                `json:"size,omitempty"`
	Schema    []sqlite.SchemaEntry `json:"schema"`
}

func inspect(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("DATA-URI is needed")
	}
	uri := c.Args().Get(0)
	ctx := context.Background()

	var r sqlite.ReaderAt
	var size int64
	if isRemote(uri) {
		store, err := newSource(c, uri)
		if err != nil {
			logger.Fatalf("open %s: %s", uri, err)
		}
		defer store.Close()
		if size, err = store.Size(ctx); err != nil {
			logger.Fatalf("probe size: %s", err)
		}
		r = store
	} else {
		fp, err := os.Open(uri)
		if err != nil {
			logger.Fatalf("open %s: %s", uri, err)
		}
		defer fp.Close()
		if st, err := fp.Stat(); err == nil {
			size = st.Size()
		}
		r = sqlite.NewIOReaderAt(fp)
	}

	f, err := sqlite.Open(ctx, r)
	if err != nil {
		return err
	}
	schema, err := f.Schema(ctx)
	if err != nil {
		return err
	}
	printJson(&inspection{
		PageSize:  f.PageSize,
		PageCount: f.PageCount,
		Size:      size,
		Schema:    schema,
	})
	return nil
}

func inspectFlags() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the header and schema of a data file",
		ArgsUsage: "DATA-URI",
		Action:    inspect,
		Flags:     sourceFlags(),
	}
}
