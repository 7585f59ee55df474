// Package codec encodes and decodes the item source files the builder reads.
//
// A codec is selected by its stable name or by file extension. Changing the
// codec of an existing source file requires re-encoding it.
package codec

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

type (
	// JSON uses encoding/json. Its output matches GoJSON.
	JSON struct{}
	// GoJSON uses github.com/goccy/go-json and is the default for ".json"
	// sources.
	GoJSON struct{}
	// Msgpack uses github.com/vmihailenco/msgpack/v5. Struct fields follow
	// their msgpack tags and embedded structs are inlined.
	Msgpack struct{}
)

func (JSON) Name() string                       { return "json" }
func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (GoJSON) Name() string                       { return "go-json" }
func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// MarshalIndent encodes v as two-space indented JSON for terminal output.
func (GoJSON) MarshalIndent(v any) ([]byte, error) { return gojson.MarshalIndent(v, "", "  ") }

func (Msgpack) Name() string                       { return "msgpack" }
func (Msgpack) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Default is the codec used for ".json" files.
var Default Codec = GoJSON{}

var (
	byName = map[string]Codec{
		JSON{}.Name():    JSON{},
		GoJSON{}.Name():  GoJSON{},
		Msgpack{}.Name(): Msgpack{},
	}
	byExt = map[string]Codec{
		".json":    Default,
		".msgpack": Msgpack{},
		".mp":      Msgpack{},
	}
)

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	c, ok := byName[name]
	return c, ok
}

// ByExtension picks a codec from a file name: ".json" selects Default,
// ".msgpack" and ".mp" select Msgpack. A trailing ".zst" is ignored.
func ByExtension(name string) (Codec, bool) {
	c, ok := byExt[strings.ToLower(filepath.Ext(strings.TrimSuffix(name, ".zst")))]
	return c, ok
}

// MustMarshal is a helper for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
