package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	pages     int
	openErr   error
	renderErr error

	renderedIndex int
	renderedScale float64
}

func (f *fakeRenderer) Open(data []byte) (Document, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeRenderer) PageCount() int { return f.pages }

func (f *fakeRenderer) RenderPage(index int, scale float64) (image.Image, error) {
	f.renderedIndex, f.renderedScale = index, scale
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	img := image.NewRGBA(image.Rect(0, 0, int(10*scale), int(20*scale)))
	img.Set(1, 1, color.Black)
	return img, nil
}

func TestRasterizeRendersFirstPageAsPNG(t *testing.T) {
	fake := &fakeRenderer{pages: 3}
	r := NewRasterizerWith(fake, 0)

	out, err := r.Rasterize(context.Background(), pdfHeader)
	require.NoError(t, err)

	assert.Equal(t, 0, fake.renderedIndex)
	assert.Equal(t, DefaultScale, fake.renderedScale)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}

func TestRasterizeCustomScale(t *testing.T) {
	fake := &fakeRenderer{pages: 1}
	r := NewRasterizerWith(fake, 3)

	_, err := r.Rasterize(context.Background(), pdfHeader)
	require.NoError(t, err)
	assert.Equal(t, 3.0, fake.renderedScale)
}

func TestRasterizeFailures(t *testing.T) {
	loadErr := errors.New("xref table broken")
	renderErr := errors.New("bad content stream")

	tests := []struct {
		name    string
		fake    *fakeRenderer
		data    []byte
		wantErr error
	}{
		{name: "zero pages", fake: &fakeRenderer{pages: 0}, data: pdfHeader, wantErr: ErrNoPages},
		{name: "malformed", fake: &fakeRenderer{openErr: loadErr}, data: pdfHeader, wantErr: loadErr},
		{name: "render failure", fake: &fakeRenderer{pages: 1, renderErr: renderErr}, data: pdfHeader, wantErr: renderErr},
		{name: "empty input", fake: &fakeRenderer{pages: 1}, data: nil, wantErr: ErrEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRasterizerWith(tc.fake, 2).Rasterize(context.Background(), tc.data)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRasterizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRasterizerWith(&fakeRenderer{pages: 1}, 2).Rasterize(ctx, pdfHeader)
	require.ErrorIs(t, err, context.Canceled)
}

func TestImgconvRendererRejectsGarbage(t *testing.T) {
	_, err := imgconvRenderer{}.Open([]byte("definitely not a pdf"))
	require.Error(t, err)
}

func TestScaleImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	assert.Same(t, image.Image(src), scaleImage(src, 1))

	scaled := scaleImage(src, 2)
	assert.Equal(t, 16, scaled.Bounds().Dx())
	assert.Equal(t, 8, scaled.Bounds().Dy())
}
