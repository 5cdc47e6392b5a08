package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yobot/internal/catalog"
	"yobot/internal/config"
	"yobot/internal/repository"
)

const usage = `catalogctl moves a listing catalog between storage formats.

Usage:
  catalogctl convert -in listings.csv -out listings.parquet
  catalogctl import  -in listings.csv
  catalogctl inspect -in listings.parquet
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(ctx, os.Args[2:])
	case "import":
		err = runImport(ctx, os.Args[2:])
	case "inspect":
		err = runInspect(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func runConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "source catalog (.csv or .parquet)")
	out := fs.String("out", "", "destination parquet file")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return fmt.Errorf("-in and -out are required")
	}

	cat, err := load(ctx, *in)
	if err != nil {
		return err
	}

	entries := make([]catalog.Entry, cat.Len())
	for i := range entries {
		entries[i] = cat.Entry(i)
	}
	if err := catalog.WriteParquet(*out, entries); err != nil {
		return err
	}
	log.Printf("Wrote %d listings (%d dimensions) to %s", cat.Len(), cat.Dimension(), *out)
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "", "source catalog (.csv or .parquet)")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.PostgreSQL.Enabled {
		return fmt.Errorf("set DATABASE_URL or PG_ENABLED=true to import")
	}

	cat, err := load(ctx, *in)
	if err != nil {
		return err
	}

	repo, err := repository.NewPostgresRepository(cfg.GetPostgreSQLDSN(), cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	entries := make([]catalog.Entry, cat.Len())
	for i := range entries {
		entries[i] = cat.Entry(i)
	}
	start := time.Now()
	n, err := repo.UpsertListings(ctx, entries)
	if err != nil {
		return err
	}
	log.Printf("Imported %d listings in %v", n, time.Since(start))
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "catalog file (.csv or .parquet)")
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	cat, err := load(ctx, *in)
	if err != nil {
		return err
	}
	fmt.Printf("listings:  %d\ndimension: %d\n", cat.Len(), cat.Dimension())
	for _, l := range cat.Listings() {
		fmt.Printf("  %d\t%s, %s\t%s\n", l.ID, l.Location, l.Neighborhood, l.Price)
	}
	return nil
}

// load picks the reader from the file extension and validates the result
func load(ctx context.Context, path string) (*catalog.Catalog, error) {
	var source catalog.Source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		source = catalog.ParquetSource{Path: path}
	case ".csv":
		source = catalog.CSVSource{Path: path}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}

	entries, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(entries)
}
