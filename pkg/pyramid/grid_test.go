package pyramid

import "testing"

func TestGridCoversLevelExactlyOnce(t *testing.T) {
	g := NewGrid(100, 70, 32)

	covered := make([]bool, 100*70)
	tiles := 0
	for {
		x, y, w, h, ok := g.Next()
		if !ok {
			break
		}
		tiles++
		if w <= 0 || h <= 0 || w > 32 || h > 32 {
			t.Fatalf("tile (%d, %d) has window %dx%d", x, y, w, h)
		}
		for dy := 0; dy < h; dy++ {
			for dx := 0; dx < w; dx++ {
				i := (y+dy)*100 + (x + dx)
				if covered[i] {
					t.Fatalf("pixel (%d, %d) covered twice", x+dx, y+dy)
				}
				covered[i] = true
			}
		}
	}

	if want := g.Tiles(); tiles != want {
		t.Errorf("yielded %d tiles, Tiles() reports %d", tiles, want)
	}
	for i, c := range covered {
		if !c {
			t.Fatalf("pixel (%d, %d) never covered", i%100, i/100)
		}
	}
}

func TestGridRowMajorOrderAndClamping(t *testing.T) {
	g := NewGrid(70, 50, 32)

	want := []struct{ x, y, w, h int }{
		{0, 0, 32, 32}, {32, 0, 32, 32}, {64, 0, 6, 32},
		{0, 32, 32, 18}, {32, 32, 32, 18}, {64, 32, 6, 18},
	}
	for i, wt := range want {
		x, y, w, h, ok := g.Next()
		if !ok {
			t.Fatalf("grid exhausted after %d tiles, want %d", i, len(want))
		}
		if x != wt.x || y != wt.y || w != wt.w || h != wt.h {
			t.Errorf("tile %d: got (%d, %d) %dx%d, want (%d, %d) %dx%d",
				i, x, y, w, h, wt.x, wt.y, wt.w, wt.h)
		}
	}
	if _, _, _, _, ok := g.Next(); ok {
		t.Error("grid yielded more tiles than expected")
	}
}

func TestGridReset(t *testing.T) {
	g := NewGrid(64, 64, 32)
	g.Next()
	g.Next()
	g.Reset()

	x, y, _, _, ok := g.Next()
	if !ok || x != 0 || y != 0 {
		t.Errorf("after Reset got (%d, %d) ok=%v, want (0, 0) true", x, y, ok)
	}
}

func TestGridSmallerThanOneTile(t *testing.T) {
	g := NewGrid(10, 7, 512)
	if n := g.Tiles(); n != 1 {
		t.Fatalf("Tiles() = %d, want 1", n)
	}
	x, y, w, h, ok := g.Next()
	if !ok || x != 0 || y != 0 || w != 10 || h != 7 {
		t.Errorf("got (%d, %d) %dx%d ok=%v, want (0, 0) 10x7 true", x, y, w, h, ok)
	}
	if _, _, _, _, ok := g.Next(); ok {
		t.Error("single-tile grid yielded a second tile")
	}
}
