package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/blobstore/minio"
	"github.com/hupe1980/gisdb/blobstore/s3"
	"github.com/hupe1980/gisdb/pack"
)

// openStore connects to the blob store named by c.Store.
func openStore(ctx context.Context, c config) (blobstore.BlobStore, error) {
	switch c.Store {
	case "local":
		root := c.Bucket
		if root == "" {
			root = "."
		}
		return blobstore.NewLocalStore(filepath.Join(root, filepath.FromSlash(c.Prefix))), nil
	case "s3":
		if c.Bucket == "" {
			return nil, fmt.Errorf("%w: s3 store needs a bucket (set -bucket or GISDB_BUCKET)", errUsage)
		}
		var opts []s3.Option
		if c.Prefix != "" {
			opts = append(opts, s3.WithPrefix(c.Prefix))
		}
		if c.Region != "" {
			opts = append(opts, s3.WithRegion(c.Region))
		}
		if c.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(c.Endpoint))
		}
		st, err := s3.New(ctx, c.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "minio":
		if c.Bucket == "" || c.Endpoint == "" {
			return nil, fmt.Errorf("%w: minio store needs a bucket and an endpoint", errUsage)
		}
		st, err := minio.New(minio.Config{
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Secure:    c.Secure,
			Region:    c.Region,
			Bucket:    c.Bucket,
			Prefix:    c.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
}

// storeFlags registers the flags that override the store settings.
func storeFlags(fs *flag.FlagSet, c *config) {
	fs.StringVar(&c.Store, "store", c.Store, "blob store: local, s3 or minio")
	fs.StringVar(&c.Bucket, "bucket", c.Bucket, "bucket, or root directory for the local store")
	fs.StringVar(&c.Prefix, "prefix", c.Prefix, "key prefix")
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "s3 or minio endpoint")
}

func runPublish(ctx context.Context, e *env, args []string) error {
	cfg := e.cfg
	fs := newFlagSet(e, "publish")
	storeFlags(fs, &cfg)
	name := fs.String("name", "", "blob name (default: file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	path := fs.Arg(0)
	if *name == "" {
		*name = filepath.Base(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Refuse to publish a database that does not verify.
	db, err := gisdb.OpenBytes(data, dbOptions(e)...)
	if err != nil {
		return err
	}
	if err := db.Verify(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	items := db.Size()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, *name, data); err != nil {
		return err
	}

	e.log.InfoContext(ctx, "published", "path", path, "store", cfg.Store, "name", *name, "items", items, "bytes", len(data), "packed", pack.IsPacked(data))
	fmt.Fprintf(e.stdout, "%s -> %s:%s (%d items)\n", path, cfg.Store, *name, items)
	return nil
}
