package loader

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/trajview/pkg/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize caps inflated structure payloads.
const maxDecodedSize = 256 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

// Decode turns a raw structure response into text. Plain UTF-8 passes through;
// gzip and zstd bodies are inflated first. Each byte that is not valid UTF-8 is
// replaced with U+FFFD and reported through lossy. A body that cannot be
// inflated is a domain.ErrDecodeFailure.
func Decode(raw []byte) (text string, lossy bool, err error) {
	if len(raw) == 0 {
		return "", false, nil
	}

	data, err := inflate(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), false, nil
	}
	return replaceInvalid(data), true, nil
}

func replaceInvalid(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.Write(data[:size])
		}
		data = data[size:]
	}
	return b.String()
}

func inflate(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return readCapped(r)
	case bytes.HasPrefix(raw, zstdMagic):
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer d.Close()
		out, err := d.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	}
	return raw, nil
}

func readCapped(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecodedSize {
		return nil, fmt.Errorf("inflated payload exceeds %d bytes", maxDecodedSize)
	}
	return out, nil
}
