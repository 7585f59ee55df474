// Package source reads and writes the item source files the builder
// consumes. A source file holds the records of one aviation kind:
//
//	{"kind": "airport", "items": [{"name": "KJFK", "position": {...}, ...}]}
//
// The codec follows the file extension (see codec.ByExtension). Files ending
// in ".zst" are zstd-compressed.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/codec"
)

var (
	// ErrUnknownKind is returned for a kind no aviation schema handles.
	ErrUnknownKind = errors.New("source: unknown kind")
	// ErrUnknownFormat is returned when no codec matches the file name.
	ErrUnknownFormat = errors.New("source: unknown file format")
)

// Set is the decoded content of a source file.
type Set struct {
	Kind   string
	Schema gisdb.Schema
	Items  []gisdb.Item
}

type header struct {
	Kind string `json:"kind" msgpack:"kind"`
}

type file[T any] struct {
	Kind  string `json:"kind" msgpack:"kind"`
	Items []T    `json:"items" msgpack:"items"`
}

// Load reads and decodes the source file at path.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set, err := Read(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Read decodes a source file from r. name selects the codec and
// decompression.
func Read(r io.Reader, name string) (*Set, error) {
	c, ok := codec.ByExtension(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}

	if strings.HasSuffix(name, ".zst") {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(c, data)
}

// Decode decodes an encoded source file.
func Decode(c codec.Codec, data []byte) (*Set, error) {
	var h header
	if err := c.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("source: %s: %w", c.Name(), err)
	}
	schema, ok := aviation.SchemaByKind(h.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, h.Kind)
	}

	var (
		items []gisdb.Item
		err   error
	)
	switch schema.(type) {
	case aviation.AirportSchema:
		items, err = decodeItems[*aviation.Airport](c, data)
	case aviation.RunwaySchema:
		items, err = decodeItems[*aviation.Runway](c, data)
	case aviation.NavaidSchema:
		items, err = decodeItems[*aviation.Navaid](c, data)
	case aviation.FixSchema:
		items, err = decodeItems[*aviation.Fix](c, data)
	}
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", c.Name(), err)
	}

	for i, it := range items {
		if it == nil || it.Common().Name == "" {
			return nil, fmt.Errorf("source: item %d of kind %s has no name", i, h.Kind)
		}
	}
	return &Set{Kind: h.Kind, Schema: schema, Items: items}, nil
}

func decodeItems[T gisdb.Item](c codec.Codec, data []byte) ([]gisdb.Item, error) {
	var f file[T]
	if err := c.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	items := make([]gisdb.Item, len(f.Items))
	for i, it := range f.Items {
		items[i] = it
	}
	return items, nil
}

// Encode encodes items of the given kind.
func Encode(c codec.Codec, kind string, items []gisdb.Item) ([]byte, error) {
	if _, ok := aviation.SchemaByKind(kind); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if items == nil {
		items = []gisdb.Item{}
	}
	return c.Marshal(file[gisdb.Item]{Kind: kind, Items: items})
}

// Write encodes items into the file at path, compressing when the name ends
// in ".zst".
func Write(path, kind string, items []gisdb.Item) error {
	c, ok := codec.ByExtension(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	data, err := Encode(c, kind, items)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".zst") {
		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return os.WriteFile(path, data, 0o644)
}
