package ocr

import (
	"image"
	"image/color"
	"image/draw"
)

// Padding added around frames before recognition, in pixels.
const (
	LocalPadding  = 10
	NativePadding = 20
)

// PadRGBA surrounds img with a white border. Recognizers clip glyphs that
// touch the frame edge.
func PadRGBA(img image.Image, pad int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*pad, b.Dy()+2*pad))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(pad, pad, pad+b.Dx(), pad+b.Dy()), img, b.Min, draw.Src)
	return out
}

// PrepareNative runs grayscale, Otsu binarization, inversion and white
// padding, turning light subtitles on dark video into dark text on white.
func PrepareNative(img image.Image) *image.Gray {
	gray := Grayscale(img)
	Binarize(gray, OtsuThreshold(gray))
	Invert(gray)
	return PadGray(gray, NativePadding, 255)
}

// Grayscale converts img using the standard luma weights.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return out
}

// OtsuThreshold returns the threshold maximising between-class variance.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}
	var (
		sumBack    float64
		weightBack int
		best       float64
		threshold  uint8
	)
	for t := 0; t < 256; t++ {
		weightBack += hist[t]
		if weightBack == 0 {
			continue
		}
		weightFore := total - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t * hist[t])
		meanBack := sumBack / float64(weightBack)
		meanFore := (sumAll - sumBack) / float64(weightFore)
		between := float64(weightBack) * float64(weightFore) * (meanBack - meanFore) * (meanBack - meanFore)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// Binarize sets pixels above t to white and the rest to black, in place.
func Binarize(g *image.Gray, t uint8) {
	for i, v := range g.Pix {
		if v > t {
			g.Pix[i] = 255
		} else {
			g.Pix[i] = 0
		}
	}
}

// Invert flips every pixel in place.
func Invert(g *image.Gray) {
	for i, v := range g.Pix {
		g.Pix[i] = 255 - v
	}
}

// PadGray surrounds g with a border of the given shade.
func PadGray(g *image.Gray, pad int, shade uint8) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()+2*pad, b.Dy()+2*pad))
	for i := range out.Pix {
		out.Pix[i] = shade
	}
	draw.Draw(out, image.Rect(pad, pad, pad+b.Dx(), pad+b.Dy()), g, b.Min, draw.Src)
	return out
}
