package systems

import (
	"math"
	"math/rand"
	"testing"
)

// bruteNeighbors returns the indices within radius of boid i, ascending.
func bruteNeighbors(boids []Boid, i int, radius float32) []int32 {
	var out []int32
	for j := range boids {
		if j == i {
			continue
		}
		dx := boids[i].X - boids[j].X
		dy := boids[i].Y - boids[j].Y
		if float32(math.Sqrt(float64(dx*dx+dy*dy))) < radius {
			out = append(out, int32(j))
		}
	}
	return out
}

func TestSpatialGrid_QueryCoversNeighbors(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	// Some boids well outside the covered extent to exercise border clamping
	boids := randomFlock(rng, 400, 400)

	const radius = 40
	g := NewSpatialGrid(250, radius)
	g.Rebuild(boids)

	var candidates []int32
	for i := range boids {
		candidates = g.QueryInto(candidates[:0], boids[i].X, boids[i].Y, radius)

		seen := make(map[int32]bool, len(candidates))
		for k, c := range candidates {
			if k > 0 && candidates[k-1] > c {
				t.Fatalf("boid %d: candidates not sorted: %v", i, candidates)
			}
			seen[c] = true
		}
		for _, want := range bruteNeighbors(boids, i, radius) {
			if !seen[want] {
				t.Fatalf("boid %d: neighbor %d missing from candidates", i, want)
			}
		}
	}
}

func TestSpatialGrid_SkipsNonFinite(t *testing.T) {
	g := NewSpatialGrid(100, 10)
	nan := float32(math.NaN())
	g.Rebuild([]Boid{{X: 0, Y: 0}, {X: nan, Y: 0}, {X: 1, Y: float32(math.Inf(1))}})

	got := g.QueryInto(nil, 0, 0, 10)
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("expected only boid 0, got %v", got)
	}

	if got := g.QueryInto(nil, nan, 0, 10); len(got) != 0 {
		t.Errorf("query at NaN should return nothing, got %v", got)
	}
}

func TestSpatialGrid_NonPositiveCellSize(t *testing.T) {
	for _, cell := range []float32{0, -5, float32(math.NaN())} {
		g := NewSpatialGrid(100, cell)
		if g.cols < 1 || g.cols > 2 || g.rows != g.cols {
			t.Fatalf("cell %v: grid is %dx%d, want a single world-sized cell", cell, g.cols, g.rows)
		}
		g.Rebuild([]Boid{{X: -90, Y: -90}, {X: 90, Y: 90}})
		if got := g.QueryInto(nil, 0, 0, 0); len(got) != 2 {
			t.Errorf("cell %v: expected both boids, got %v", cell, got)
		}
	}
}

func TestSpatialGrid_Clear(t *testing.T) {
	g := NewSpatialGrid(100, 10)
	g.Insert(0, 5, 5)
	g.Insert(1, -5, -5)
	g.Clear()

	if got := g.QueryInto(nil, 0, 0, 20); len(got) != 0 {
		t.Errorf("expected empty grid after Clear, got %v", got)
	}
}

func TestSpatialGrid_StepMatchesBrute(t *testing.T) {
	p := testParams()
	rng := rand.New(rand.NewSource(9))
	src := randomFlock(rng, 300, 300)

	g := NewSpatialGrid(p.Edge, p.VisualRange)
	g.Rebuild(src)

	var candidates []int32
	for i := range src {
		want, wantOut := UpdateBoid(src, i, testDT, &p)
		candidates = g.QueryInto(candidates[:0], src[i].X, src[i].Y, p.VisualRange)
		got, gotOut := UpdateBoidCandidates(src, i, candidates, testDT, &p)

		if got != want || gotOut != wantOut {
			t.Fatalf("boid %d: grid %+v/%+v, brute %+v/%+v", i, got, gotOut, want, wantOut)
		}
	}
}

func BenchmarkNeighborSearch(b *testing.B) {
	p := testParams()
	rng := rand.New(rand.NewSource(1))
	src := randomFlock(rng, 1000, 250)

	b.Run("brute", func(b *testing.B) {
		for n := 0; n < b.N; n++ {
			for i := range src {
				UpdateBoid(src, i, testDT, &p)
			}
		}
	})

	b.Run("grid", func(b *testing.B) {
		g := NewSpatialGrid(p.Edge, p.VisualRange)
		var candidates []int32
		for n := 0; n < b.N; n++ {
			g.Rebuild(src)
			for i := range src {
				candidates = g.QueryInto(candidates[:0], src[i].X, src[i].Y, p.VisualRange)
				UpdateBoidCandidates(src, i, candidates, testDT, &p)
			}
		}
	})
}
