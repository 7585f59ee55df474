package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/pack"
	"github.com/hupe1980/gisdb/source"
)

func runBuild(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "build")
	out := fs.String("out", ".", "output directory")
	codecName := fs.String("codec", e.cfg.Codec, "pack codec: none, lz4 or zstd")
	replace := fs.Bool("replace", false, "keep the last of duplicate names instead of failing")
	jobs := fs.Int("j", runtime.GOMAXPROCS(0), "files built in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	c, err := pack.ParseCodec(*codecName)
	if err != nil {
		return err
	}

	opts := dbOptions(e)
	if *replace {
		opts = append(opts, gisdb.WithDuplicatePolicy(gisdb.DuplicateReplace))
	}

	store := blobstore.NewLocalStore(*out)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*jobs, 1))
	for _, src := range fs.Args() {
		g.Go(func() error {
			name, err := buildOne(ctx, store, src, c, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			fmt.Fprintf(e.stdout, "%s -> %s\n", src, filepath.Join(*out, name))
			return nil
		})
	}
	return g.Wait()
}

// buildOne builds the source file src into store and returns the name of
// the written database.
func buildOne(ctx context.Context, store blobstore.BlobStore, src string, c pack.Codec, opts []gisdb.Option) (string, error) {
	set, err := source.Load(src)
	if err != nil {
		return "", err
	}

	b := gisdb.NewBuilder(set.Schema, opts...)
	defer b.Close()
	for _, it := range set.Items {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := b.AddItem(it); err != nil {
			return "", err
		}
	}

	name := outputName(src)
	if c == pack.None {
		return name, b.BuildTo(ctx, store, name)
	}

	data, err := b.Bytes()
	if err != nil {
		return "", err
	}
	packed, err := pack.Encode(data, c)
	if err != nil {
		return "", err
	}
	return name, store.Put(ctx, name, packed)
}

// outputName maps "airports.json.zst" to "airports.gdb".
func outputName(src string) string {
	base := filepath.Base(src)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base + ".gdb"
}

func dbOptions(e *env) []gisdb.Option {
	return []gisdb.Option{
		gisdb.WithRegistry(aviation.Registry()),
		gisdb.WithLogger(e.log),
	}
}

func runPack(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "pack")
	codecName := fs.String("codec", "zstd", "codec: none, lz4 or zstd")
	decode := fs.Bool("d", false, "decompress a packed database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	in, out := fs.Arg(0), fs.Arg(1)

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	var result []byte
	if *decode {
		result, err = pack.Decode(data)
	} else {
		var c pack.Codec
		if c, err = pack.ParseCodec(*codecName); err != nil {
			return err
		}
		if pack.IsPacked(data) {
			return fmt.Errorf("%s is already packed", in)
		}
		if _, err = gisdb.OpenBytes(data, dbOptions(e)...); err != nil {
			return err
		}
		result, err = pack.Encode(data, c)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, result, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: %d -> %d bytes\n", out, len(data), len(result))
	return nil
}
