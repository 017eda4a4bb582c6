package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfHeader  = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		filename string
		data     []byte
		want     string
		wantErr  error
	}{
		{name: "pdf", declared: "application/pdf", filename: "a.pdf", data: pdfHeader, want: MIMEPDF},
		{name: "jpeg", declared: "image/jpeg", filename: "a.jpg", data: jpegHeader, want: MIMEJPEG},
		{name: "png", declared: "image/png", filename: "a.png", data: pngHeader, want: MIMEPNG},
		{name: "sniffed type wins over declared", declared: "image/png", filename: "scan.png", data: pdfHeader, want: MIMEPDF},
		{name: "pdf after leading bytes", declared: "", filename: "", data: append([]byte("\r\n"), pdfHeader...), want: MIMEPDF},
		{name: "inconclusive sniff uses declared", declared: "image/jpg", filename: "", data: []byte{0x00, 0x01, 0x02}, want: MIMEJPEG},
		{name: "inconclusive sniff uses extension", declared: "", filename: "SCAN.JPEG", data: []byte{0x00, 0x01, 0x02}, want: MIMEJPEG},
		{name: "gif rejected", declared: "image/gif", filename: "a.gif", data: []byte("GIF89a\x01\x00"), wantErr: ErrUnsupportedType},
		{name: "unknown rejected", declared: "application/zip", filename: "a.zip", data: []byte{0x00, 0x01}, wantErr: ErrUnsupportedType},
		{name: "empty", declared: "application/pdf", filename: "a.pdf", data: nil, wantErr: ErrEmpty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectContentType(tc.declared, tc.filename, tc.data)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, CheckSize(1, 10))
	assert.NoError(t, CheckSize(10, 10))
	assert.ErrorIs(t, CheckSize(11, 10), ErrTooLarge)
	assert.ErrorIs(t, CheckSize(0, 10), ErrEmpty)

	assert.NoError(t, CheckSize(DefaultMaxSize, 0), "non-positive max falls back to the default")
	assert.ErrorIs(t, CheckSize(DefaultMaxSize+1, 0), ErrTooLarge)
}

func TestIsPDFAndExtension(t *testing.T) {
	assert.True(t, IsPDF("application/pdf"))
	assert.True(t, IsPDF("Application/PDF; charset=binary"))
	assert.False(t, IsPDF("image/png"))

	assert.Equal(t, "pdf", Extension(MIMEPDF))
	assert.Equal(t, "png", Extension(MIMEPNG))
	assert.Equal(t, "jpg", Extension(MIMEJPEG))
	assert.Equal(t, "jpg", Extension("image/jpg"))
}
