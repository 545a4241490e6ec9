// Package imageprep turns uploaded leaf photographs into classifier input
// tensors: decode, resize to the deployment input size, drop alpha,
// normalize per classifier family and add the batch dimension.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/tphakala/plantdoc/internal/errors"
)

// maxPixels bounds decoded image area to reject decompression bombs.
const maxPixels = 50_000_000

// Layout names the order of tensor dimensions.
type Layout string

const (
	NHWC Layout = "nhwc"
	NCHW Layout = "nchw"
)

// ErrInvalidImage is returned for data that cannot be decoded as an image.
var ErrInvalidImage = errors.NewStd("invalid image")

// Dimensions is the fixed classifier input size.
type Dimensions struct {
	Width  int
	Height int
}

// Tensor is a batch-of-one float32 input tensor.
type Tensor struct {
	Data   []float32
	Shape  []int64
	Layout Layout
}

// Decode decodes JPEG, PNG, GIF or WebP data. It returns the image and the
// format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", invalidImage(fmt.Errorf("%w: empty upload", ErrInvalidImage))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", invalidImage(fmt.Errorf("%w: %w", ErrInvalidImage, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, "", invalidImage(fmt.Errorf("%w: unsupported dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", invalidImage(fmt.Errorf("%w: %w", ErrInvalidImage, err))
	}
	return img, format, nil
}

func invalidImage(err error) error {
	return errors.New(err).
		Component("imageprep").
		Category(errors.CategoryValidation).
		Build()
}

// Preprocess resizes img to dims with Lanczos3, converts it to RGB
// dropping any alpha channel, normalizes each channel with n and lays the
// result out as a batch of one.
func Preprocess(img image.Image, dims Dimensions, n Normalizer, layout Layout) (Tensor, error) {
	if img == nil {
		return Tensor{}, invalidImage(fmt.Errorf("%w: nil image", ErrInvalidImage))
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return Tensor{}, fmt.Errorf("invalid target dimensions %dx%d", dims.Width, dims.Height)
	}
	if n == nil {
		return Tensor{}, fmt.Errorf("normalizer is required")
	}

	rgb := toNRGBA(resize.Resize(uint(dims.Width), uint(dims.Height), dropAlpha(img), resize.Lanczos3))
	w, h := dims.Width, dims.Height
	data := make([]float32, 3*w*h)

	for y := range h {
		row := rgb.Pix[y*rgb.Stride:]
		for x := range w {
			px := row[x*4 : x*4+3]
			for c := range 3 {
				v := n.Apply(c, px[c])
				switch layout {
				case NCHW:
					data[c*w*h+y*w+x] = v
				default:
					data[(y*w+x)*3+c] = v
				}
			}
		}
	}

	t := Tensor{Data: data, Layout: layout}
	switch layout {
	case NCHW:
		t.Shape = []int64{1, 3, int64(h), int64(w)}
	default:
		t.Layout = NHWC
		t.Shape = []int64{1, int64(h), int64(w), 3}
	}
	return t, nil
}

// dropAlpha returns an opaque version of img keeping the unpremultiplied
// color of every pixel. Formats without alpha are returned unchanged.
func dropAlpha(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return src
	case *image.NRGBA:
		b := src.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := range b.Dy() {
			start := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:], src.Pix[start:start+4*b.Dx()])
		}
		setOpaque(dst)
		return dst
	default:
		b := img.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := range b.Dy() {
			for x := range b.Dx() {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				dst.SetNRGBA(x, y, c)
			}
		}
		setOpaque(dst)
		return dst
	}
}

func setOpaque(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}

// toNRGBA returns img as non-premultiplied RGBA anchored at the origin,
// so reading Pix ignores alpha without darkening translucent pixels.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
