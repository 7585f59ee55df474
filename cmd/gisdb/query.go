package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/codec"
	"github.com/hupe1980/gisdb/geo"
)

// itemView is the JSON form of an item in command output and HTTP
// responses.
type itemView struct {
	Kind     string     `json:"kind"`
	Item     gisdb.Item `json:"item"`
	Distance *float64   `json:"distance_m,omitempty"`
}

func newItemView(db *gisdb.DB, it gisdb.Item) itemView {
	kind, ok := aviation.KindOf(db.Schema())
	if !ok {
		kind = db.Schema().ID()
	}
	return itemView{Kind: kind, Item: it}
}

func neighborViews(db *gisdb.DB, ns []gisdb.Neighbor) []itemView {
	out := make([]itemView, len(ns))
	for i, n := range ns {
		out[i] = newItemView(db, n.Item)
		d := n.Distance
		out[i].Distance = &d
	}
	return out
}

func runGet(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "get")
	path := fs.String("db", e.cfg.DB, "database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	db, err := openDB(e, *path)
	if err != nil {
		return err
	}
	defer db.Close()

	var missing int
	for _, name := range fs.Args() {
		it, ok, err := db.GetItem(name)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(e.stderr, "%s: not found\n", name)
			missing++
			continue
		}
		out, err := codec.GoJSON{}.MarshalIndent(newItemView(db, it))
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, string(out))
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d names not found", missing, fs.NArg())
	}
	return nil
}

func parsePosition(latStr, lonStr string) (geo.Position, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return geo.Position{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return geo.Position{}, fmt.Errorf("invalid longitude %q", lonStr)
	}
	return geo.Position{Lat: lat, Lon: lon}, nil
}

func runNearest(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "nearest")
	path := fs.String("db", e.cfg.DB, "database path")
	k := fs.Int("k", 1, "number of neighbors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	pos, err := parsePosition(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}

	db, err := openDB(e, *path)
	if err != nil {
		return err
	}
	defer db.Close()

	ns, err := db.NNearest(pos, *k)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLAT\tLON\tDISTANCE")
	for _, n := range ns {
		b := n.Item.Common()
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.1f km\n", b.Name, b.Position.Lat, b.Position.Lon, n.Distance/1000)
	}
	return tw.Flush()
}

func runVerify(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	var failed int
	for _, path := range fs.Args() {
		db, err := openDB(e, path)
		if err == nil {
			err = db.Verify()
			if err == nil {
				fmt.Fprintf(e.stdout, "%s: ok, %d items, %d strings, schema %s\n", path, db.Size(), db.Strings(), db.Schema().ID())
			}
			_ = db.Close()
		}
		if err != nil {
			fmt.Fprintf(e.stdout, "%s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d databases failed verification", failed, fs.NArg())
	}
	return nil
}
