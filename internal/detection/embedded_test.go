package detection

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func whiteFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.Color) {
	for py := y; py < y+h; py++ {
		for px := x; px < x+w; px++ {
			img.Set(px, py, c)
		}
	}
}

func TestDetectUniformFrame(t *testing.T) {
	d := NewEmbedded(EmbeddedConfig{Workers: 1})

	count, err := d.Detect(context.Background(), encodePNG(t, whiteFrame(200, 200)), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDetectCountsUprightFigures(t *testing.T) {
	d := NewEmbedded(EmbeddedConfig{Workers: 1})

	// Two tall dark figures against a bright background.
	img := whiteFrame(200, 200)
	fillRect(img, 40, 40, 20, 60, color.Black)
	fillRect(img, 120, 40, 20, 60, color.Black)

	count, err := d.Detect(context.Background(), encodePNG(t, img), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDetectIgnoresWideObjects(t *testing.T) {
	d := NewEmbedded(EmbeddedConfig{Workers: 1})

	// A desk-shaped region: much wider than tall, not a person.
	img := whiteFrame(200, 200)
	fillRect(img, 40, 40, 80, 20, color.Black)

	count, err := d.Detect(context.Background(), encodePNG(t, img), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDetectInvalidFrame(t *testing.T) {
	d := NewEmbedded(EmbeddedConfig{Workers: 1})

	_, err := d.Detect(context.Background(), []byte("not an image"), "dev-1")
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDetectConcurrent(t *testing.T) {
	d := NewEmbedded(EmbeddedConfig{Workers: 2})
	frame := encodePNG(t, whiteFrame(120, 120))

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Detect(context.Background(), frame, "dev-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestSuppressOverlaps(t *testing.T) {
	regions := []region{
		{x: 0, y: 0, w: 40, h: 80, score: 0.9},
		{x: 4, y: 4, w: 40, h: 80, score: 0.5}, // heavy overlap with the first
		{x: 120, y: 0, w: 40, h: 80, score: 0.7},
	}

	kept := suppressOverlaps(regions, IoUThreshold)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].score)
	assert.Equal(t, float32(0.7), kept[1].score)
}

func TestIoU(t *testing.T) {
	a := region{x: 0, y: 0, w: 10, h: 10}
	assert.Equal(t, float32(1), iou(a, a))
	assert.Equal(t, float32(0), iou(a, region{x: 20, y: 20, w: 10, h: 10}))
}
