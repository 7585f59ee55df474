// Command gisdb builds, inspects, publishes and serves gisdb databases.
//
// Usage:
//
//	gisdb <command> [flags] [args]
//
// Commands:
//
//	build    build databases from source files
//	get      look up items by name
//	nearest  find the items nearest to a position
//	verify   check the structure of a database
//	pack     compress or decompress a database
//	publish  upload a database to a blob store
//	serve    serve queries over HTTP
//
// Configuration is read from the environment and from a .env file in the
// working directory. Flags take precedence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hupe1980/gisdb"
)

// env carries what every command needs.
type env struct {
	cfg    config
	log    *gisdb.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"build", "build [-out dir] [-codec none|lz4|zstd] [-replace] source...", runBuild},
	{"get", "get [-db path] name...", runGet},
	{"nearest", "nearest [-db path] [-k n] lat lon", runNearest},
	{"verify", "verify path...", runVerify},
	{"pack", "pack [-codec lz4|zstd] [-d] in out", runPack},
	{"publish", "publish [-store local|s3|minio] [-bucket b] [-prefix p] [-name n] path", runPublish},
	{"serve", "serve [-db path | -blob name] [-addr addr]", runServe},
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gisdb:", err)
		os.Exit(2)
	}
	logger, closer := newLogger(cfg)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, log: logger, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(run(ctx, e, os.Args[1:]))
}

func run(ctx context.Context, e *env, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(e.stderr)
		return 2
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, e, args[1:])
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 2
		case errors.Is(err, errUsage):
			fmt.Fprintf(e.stderr, "usage: gisdb %s\n", c.usage)
			return 2
		default:
			e.log.Error("command failed", "command", c.name, "error", err)
			fmt.Fprintf(e.stderr, "gisdb %s: %v\n", c.name, err)
			return 1
		}
	}
	fmt.Fprintf(e.stderr, "gisdb: unknown command %q\n", args[0])
	usage(e.stderr)
	return 2
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: gisdb <command> [flags] [args]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  gisdb %s\n", c.usage)
	}
}

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// openDB opens a local database with the aviation schemas.
func openDB(e *env, path string, opts ...gisdb.Option) (*gisdb.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no database path (set -db or GISDB_DB)", errUsage)
	}
	return gisdb.Open(path, append(dbOptions(e), opts...)...)
}
