// Package pack compresses database images for storage and transfer.
//
// A packed image is a 20-byte header followed by the compressed bytes:
//
//	magic   [4]byte "GDBP"
//	codec   uint8
//	_       [3]byte
//	size    uint64  uncompressed length
//	crc32c  uint32  of the uncompressed image
//
// All integers are little-endian. Packed images are decoded into memory;
// they cannot be memory-mapped.
package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/gisdb/internal/hash"
)

// Codec identifies the compression algorithm.
type Codec uint8

const (
	// None stores the image uncompressed with a checksum.
	None Codec = 0
	// LZ4 is fast to decode.
	LZ4 Codec = 1
	// Zstd gives the better ratio.
	Zstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps "none", "lz4" and "zstd" to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("pack: unknown codec %q", s)
	}
}

// HeaderSize is the length of the packed header.
const HeaderSize = 20

// maxSize bounds the uncompressed size; database offsets are int32.
const maxSize = 1<<31 - 1

var magic = []byte("GDBP")

var (
	// ErrInvalid is returned for a malformed packed image.
	ErrInvalid = errors.New("pack: invalid packed image")
	// ErrChecksum is returned when the decoded image does not match its checksum.
	ErrChecksum = errors.New("pack: checksum mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// IsPacked reports whether data starts with the packed magic.
func IsPacked(data []byte) bool {
	return len(data) >= HeaderSize && bytes.Equal(data[:4], magic)
}

// Encode packs data with codec c.
func Encode(data []byte, c Codec) ([]byte, error) {
	if len(data) > maxSize {
		return nil, fmt.Errorf("pack: image of %d bytes too large", len(data))
	}

	hdr := make([]byte, HeaderSize, HeaderSize+len(data)/2)
	copy(hdr, magic)
	hdr[4] = byte(c)
	binary.LittleEndian.PutUint64(hdr[8:], uint64(len(data)))
	binary.LittleEndian.PutUint32(hdr[16:], hash.CRC32C(data))

	switch c {
	case None:
		return append(hdr, data...), nil
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("pack: lz4: %w", err)
		}
		if n == 0 && len(data) > 0 {
			// Incompressible.
			hdr[4] = byte(None)
			return append(hdr, data...), nil
		}
		return append(hdr, buf[:n]...), nil
	case Zstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, hdr), nil
	default:
		return nil, fmt.Errorf("pack: unknown codec %d", uint8(c))
	}
}

// Header describes a packed image.
type Header struct {
	Codec    Codec
	Size     int64
	Checksum uint32
}

// ReadHeader parses the header of a packed image.
func ReadHeader(data []byte) (Header, error) {
	if !IsPacked(data) {
		return Header{}, ErrInvalid
	}
	h := Header{
		Codec:    Codec(data[4]),
		Checksum: binary.LittleEndian.Uint32(data[16:]),
	}
	size := binary.LittleEndian.Uint64(data[8:])
	if size > maxSize {
		return Header{}, fmt.Errorf("%w: uncompressed size %d", ErrInvalid, size)
	}
	h.Size = int64(size)
	return h, nil
}

// Decode unpacks a packed image and verifies its checksum.
func Decode(data []byte) ([]byte, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[HeaderSize:]

	var out []byte
	switch {
	case h.Size == 0 && len(body) == 0:
		out = []byte{}
	case h.Codec == None:
		if int64(len(body)) != h.Size {
			return nil, fmt.Errorf("%w: body is %d bytes, want %d", ErrInvalid, len(body), h.Size)
		}
		out = append([]byte(nil), body...)
	case h.Codec == LZ4:
		out = make([]byte, h.Size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrInvalid, err)
		}
		if int64(n) != h.Size {
			return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalid, n, h.Size)
		}
	case h.Codec == Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err = dec.DecodeAll(body, make([]byte, 0, h.Size))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalid, err)
		}
		if int64(len(out)) != h.Size {
			return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalid, len(out), h.Size)
		}
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrInvalid, uint8(h.Codec))
	}

	if hash.CRC32C(out) != h.Checksum {
		return nil, ErrChecksum
	}
	return out, nil
}
