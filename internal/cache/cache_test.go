package cache

import (
	"image"
	"image/color"
	"sync"
	"testing"
)

// makePattern creates test images with distinct patterns for pHash testing.
func makePattern(pattern int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			var c color.RGBA
			switch pattern {
			case 0: // solid gray
				c = color.RGBA{R: 128, G: 128, B: 128, A: 255}
			case 1: // checkerboard
				if (x/8+y/8)%2 == 0 {
					c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
				} else {
					c = color.RGBA{A: 255}
				}
			case 2: // horizontal gradient
				c = color.RGBA{R: uint8(x * 4), B: uint8(255 - x*4), A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFingerprintIdenticalFrames(t *testing.T) {
	a, err := Compute(makePattern(1))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, _ := Compute(makePattern(1))
	if !a.Equal(b) {
		t.Errorf("identical frames: distance = %d, want 0", a.Distance(b))
	}
}

func TestFingerprintDistinctFrames(t *testing.T) {
	a, _ := Compute(makePattern(1))
	b, _ := Compute(makePattern(2))
	if a.Equal(b) {
		t.Error("checkerboard and gradient should not share a fingerprint")
	}
}

func TestFingerprintEmptyImage(t *testing.T) {
	if _, err := Compute(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("expected error for empty image")
	}
	if _, err := Compute(nil); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestFIFOEvictsOldestInserted(t *testing.T) {
	const max = 100
	c := NewImages(max)
	for i := 0; i <= max; i++ {
		c.Put(Fingerprint(i), "t")
	}
	if c.Len() != max {
		t.Fatalf("Len = %d, want %d", c.Len(), max)
	}
	if _, ok := c.Get(Fingerprint(0)); ok {
		t.Error("oldest entry should be evicted")
	}
	for i := 1; i <= max; i++ {
		if _, ok := c.Get(Fingerprint(i)); !ok {
			t.Fatalf("entry %d missing", i)
		}
	}
}

func TestFIFOIsNotLRU(t *testing.T) {
	c := NewFIFO[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")    // reads do not refresh
	c.Put("a", 3) // updates keep position
	c.Put("c", 4)

	if _, ok := c.Get("a"); ok {
		t.Error("a was inserted first and should be evicted")
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Errorf("Keys = %v, want [b c]", keys)
	}
}

func TestFIFOConcurrentBound(t *testing.T) {
	c := NewFIFO[int, int](10)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(w*1000+i, i)
				if n := c.Len(); n > 10 {
					t.Errorf("Len = %d exceeds bound", n)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len = %d, want 10", c.Len())
	}
}

func TestTextsLookup(t *testing.T) {
	c := NewTexts(50, 0.92)
	c.Put("I told you not to come back here.", "Je t'avais dit de ne pas revenir.")

	tests := []struct {
		name   string
		text   string
		wantOK bool
	}{
		{"exact", "I told you not to come back here.", true},
		{"ocr noise", "I told you not to come back here", true},
		{"padded", "  I told you not to come back here.  ", true},
		{"different line", "Where are you going?", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Lookup(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && got != "Je t'avais dit de ne pas revenir." {
				t.Errorf("Lookup(%q) = %q", tt.text, got)
			}
		})
	}
}

func TestTextsPrefersNewest(t *testing.T) {
	c := NewTexts(50, 0.5)
	c.Put("hello there", "old")
	c.Put("hello there!", "new")
	if got, _ := c.Lookup("hello there?"); got != "new" {
		t.Errorf("Lookup = %q, want newest match", got)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}
