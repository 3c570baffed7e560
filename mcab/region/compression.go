package region

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Compression is the scheme byte stored in front of every chunk payload.
type Compression byte

const (
	CompressionGZip Compression = 1
	CompressionZlib Compression = 2
	CompressionNone Compression = 3
	// CompressionLZ4 is written by newer game versions and is not supported.
	CompressionLZ4 Compression = 4

	// externalFlag marks payloads stored in a separate .mcc file.
	externalFlag = 0x80
)

// ErrUnsupportedCompression is wrapped into the slot error for unknown schemes.
var ErrUnsupportedCompression = errors.New("unsupported compression")

func (c Compression) String() string {
	switch c {
	case CompressionGZip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// Supported reports whether payloads with this scheme can be read and written.
func (c Compression) Supported() bool {
	return c == CompressionGZip || c == CompressionZlib || c == CompressionNone
}

func (c Compression) decompress(payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "open zlib stream")
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionGZip:
		r, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return nil, errors.Wrapf(ErrUnsupportedCompression, "scheme %d", byte(c))
}

func (c Compression) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case CompressionNone:
		buf.Write(data)
		return buf.Bytes(), nil
	case CompressionZlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "zlib write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "zlib close")
		}
		return buf.Bytes(), nil
	case CompressionGZip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "gzip write")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "gzip close")
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedCompression, "scheme %d", byte(c))
}
