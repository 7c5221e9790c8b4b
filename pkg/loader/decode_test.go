package loader

import (
	"bytes"
	"testing"

	"github.com/aretw0/trajview/pkg/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pdbFixture = "ATOM      1  N   ALA A   1      11.104   6.134  -6.504  1.00  0.00           N\nEND\n"

func TestDecode(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write([]byte(pdbFixture))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zs := enc.EncodeAll([]byte(pdbFixture), nil)
	require.NoError(t, enc.Close())

	tests := []struct {
		name      string
		raw       []byte
		want      string
		wantLossy bool
		wantErr   bool
	}{
		{name: "plain text", raw: []byte(pdbFixture), want: pdbFixture},
		{name: "empty", raw: nil, want: ""},
		{name: "byte order mark", raw: append([]byte{0xef, 0xbb, 0xbf}, pdbFixture...), want: pdbFixture},
		{name: "gzip", raw: gz.Bytes(), want: pdbFixture},
		{name: "zstd", raw: zs, want: pdbFixture},
		{name: "binary garbage", raw: []byte{0xff, 0xfe, 0x00, 0xc3}, want: "\uFFFD\uFFFD\x00\uFFFD", wantLossy: true},
		{name: "latin-1 remark", raw: []byte("REMARK \xc5ngstr\xf6m\n"), want: "REMARK \uFFFDngstr\uFFFDm\n", wantLossy: true},
		{name: "encoded replacement character is kept", raw: []byte("REMARK \uFFFD\n"), want: "REMARK \uFFFD\n"},
		{name: "truncated gzip", raw: gz.Bytes()[:4], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, lossy, err := Decode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrDecodeFailure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLossy, lossy)
		})
	}
}
