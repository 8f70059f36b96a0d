// Command framepack converts a CSV file into a frame blob.
//
//	framepack -in data.csv -url file:///var/frames -name data.frame
//	framepack -in data.csv -row-names -compression lz4 -url s3://bucket/frames -name data.frame
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/pagegrid"
	"github.com/hupe1980/pagegrid/blobstore/bloburl"
	"github.com/hupe1980/pagegrid/source/frame"
)

var (
	in          = flag.String("in", "-", "CSV input file, - for stdin")
	blobURL     = flag.String("url", "file://.", "destination blob store URL")
	name        = flag.String("name", "", "frame blob name")
	compression = flag.String("compression", "zstd", "chunk compression: none, lz4 or zstd")
	chunkRows   = flag.Int("chunk-rows", frame.DefaultChunkRows, "rows per chunk")
	rowNames    = flag.Bool("row-names", false, "use the first CSV column as row names")
	debug       = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := pagegrid.NewTextLogger(level)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("framepack failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *pagegrid.Logger) error {
	if *name == "" {
		return errors.New("-name is required")
	}
	c, err := frame.ParseCompression(*compression)
	if err != nil {
		return err
	}

	r := io.Reader(os.Stdin)
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	fr, err := readCSV(r, *rowNames)
	if err != nil {
		return err
	}

	store, err := bloburl.Open(ctx, *blobURL)
	if err != nil {
		return err
	}
	if err := frame.Write(ctx, store, *name, fr, frame.WithCompression(c), frame.WithChunkRows(*chunkRows)); err != nil {
		return err
	}

	logger.InfoContext(ctx, "frame written",
		"name", *name, "rows", len(fr.Rows), "columns", len(fr.ColNames), "compression", c.String())
	return nil
}

// readCSV reads a header row of column names followed by data rows. With
// rowNames the first column holds row names and its header is dropped.
func readCSV(r io.Reader, rowNames bool) (*frame.Frame, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV input")
		}
		return nil, err
	}

	fr := &frame.Frame{ColNames: header}
	if rowNames {
		if len(header) == 0 {
			return nil, errors.New("no row name column")
		}
		fr.ColNames = header[1:]
		fr.RowNames = []string{}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if rowNames {
			fr.RowNames = append(fr.RowNames, rec[0])
			rec = rec[1:]
		}
		fr.Rows = append(fr.Rows, rec)
	}
	return fr, nil
}
