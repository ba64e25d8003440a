package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/flock/config"
)

const testDT = float32(1.0)

// testParams mirrors the embedded defaults.
func testParams() Params {
	return Params{
		TurnFactor:      0.2,
		VisualRange:     40,
		ProtectedRange:  8,
		CenteringFactor: 0.0005,
		AvoidFactor:     0.05,
		MatchingFactor:  0.05,
		SpeedMin:        3,
		SpeedMax:        6,
		Edge:            250,
		HoldZeroSpeed:   true,
	}
}

// randomFlock scatters n boids with nonzero velocities.
func randomFlock(rng *rand.Rand, n int, extent float32) []Boid {
	boids := make([]Boid, n)
	for i := range boids {
		angle := rng.Float64() * 2 * math.Pi
		speed := 0.5 + rng.Float64()*10
		boids[i] = Boid{
			X:  (rng.Float32()*2 - 1) * extent,
			Y:  (rng.Float32()*2 - 1) * extent,
			VX: float32(math.Cos(angle) * speed),
			VY: float32(math.Sin(angle) * speed),
		}
	}
	return boids
}

func approx(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestParamsFromConfig(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	if ParamsFromConfig(cfg.Flocking).HoldZeroSpeed {
		t.Error("default nan policy should not hold zero speed")
	}

	cfg.Flocking.ZeroSpeed = config.ZeroSpeedHold
	p := ParamsFromConfig(cfg.Flocking)
	if p != testParams() {
		t.Errorf("params from defaults = %+v, want %+v", p, testParams())
	}
}

// ---------- speed clamp ----------

func TestUpdateBoid_SpeedWithinBounds(t *testing.T) {
	p := testParams()
	rng := rand.New(rand.NewSource(7))
	boids := randomFlock(rng, 300, 320)

	for i := range boids {
		next, out := UpdateBoid(boids, i, testDT, &p)
		if out.ZeroSpeed {
			continue
		}
		s := next.Speed()
		if s < p.SpeedMin-1e-4 || s > p.SpeedMax+1e-4 {
			t.Fatalf("boid %d speed %f outside [%f, %f]", i, s, p.SpeedMin, p.SpeedMax)
		}
	}
}

func TestClampSpeed(t *testing.T) {
	p := testParams()

	tests := []struct {
		name      string
		vx, vy    float32
		wantSpeed float32
		wantClamp int8
	}{
		{"slow raised to min", 1, 0, 3, ClampUp},
		{"fast lowered to max", 0, -10, 6, ClampDown},
		{"in range untouched", 3, 4, 5, ClampNone},
		{"exactly max untouched", 6, 0, 6, ClampNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vx, vy, clamp, zero := ClampSpeed(tc.vx, tc.vy, &p)
			if zero {
				t.Error("nonzero input reported as zero speed")
			}
			if clamp != tc.wantClamp {
				t.Errorf("clamp = %d, want %d", clamp, tc.wantClamp)
			}
			got := Boid{VX: vx, VY: vy}.Speed()
			if !approx(got, tc.wantSpeed, 1e-5) {
				t.Errorf("speed = %f, want %f", got, tc.wantSpeed)
			}
			// Direction is preserved
			if tc.vx*vx < 0 || tc.vy*vy < 0 {
				t.Errorf("direction flipped: (%f,%f) -> (%f,%f)", tc.vx, tc.vy, vx, vy)
			}
		})
	}
}

func TestClampSpeed_ZeroHold(t *testing.T) {
	p := testParams()
	vx, vy, clamp, zero := ClampSpeed(0, 0, &p)
	if vx != 0 || vy != 0 {
		t.Errorf("held zero velocity changed to (%f, %f)", vx, vy)
	}
	if !zero || clamp != ClampNone {
		t.Errorf("zero=%v clamp=%d, want zero=true clamp=0", zero, clamp)
	}
}

func TestClampSpeed_ZeroDividesToNaN(t *testing.T) {
	p := testParams()
	p.HoldZeroSpeed = false

	vx, vy, _, zero := ClampSpeed(0, 0, &p)
	if !zero {
		t.Error("expected zero speed to be reported")
	}
	if !math.IsNaN(float64(vx)) || !math.IsNaN(float64(vy)) {
		t.Errorf("expected NaN velocity from unguarded division, got (%f, %f)", vx, vy)
	}
}

// The center of a 3x3 lattice sees a perfectly symmetric neighborhood, so its
// pre-clamp velocity is exactly zero.
func TestStep_SymmetricLatticeCenter(t *testing.T) {
	boids := GenerateGrid(9, 10)
	next := make([]Boid, len(boids))

	p := testParams()
	p.HoldZeroSpeed = false
	tally := Step(next, boids, testDT, &p)
	if tally.ZeroSpeed != 1 {
		t.Errorf("expected exactly one zero-speed boid, got %d", tally.ZeroSpeed)
	}
	if n := CountNonFinite(next); n != 1 {
		t.Errorf("nan policy: expected 1 non-finite boid, got %d", n)
	}
	if next[4].Finite() {
		t.Errorf("center boid should be non-finite, got %+v", next[4])
	}

	p.HoldZeroSpeed = true
	Step(next, boids, testDT, &p)
	if n := CountNonFinite(next); n != 0 {
		t.Errorf("hold policy: expected no non-finite boids, got %d", n)
	}
	if next[4] != boids[4] {
		t.Errorf("held center boid moved: %+v -> %+v", boids[4], next[4])
	}
}

// ---------- neighbor rules ----------

func TestUpdateBoid_NoNeighborsKeepsVelocity(t *testing.T) {
	p := testParams()
	boids := []Boid{
		{X: 0, Y: 0, VX: 4, VY: 0},
		{X: 100, Y: 0, VX: -5, VY: 1}, // beyond visual range
	}

	next, out := UpdateBoid(boids, 0, testDT, &p)
	if out.Neighbors != 0 {
		t.Fatalf("expected no neighbors, got %d", out.Neighbors)
	}
	if next.VX != 4 || next.VY != 0 {
		t.Errorf("velocity changed without neighbors: (%f, %f)", next.VX, next.VY)
	}
	if next.X != 4 || next.Y != 0 {
		t.Errorf("expected position (4, 0), got (%f, %f)", next.X, next.Y)
	}
}

func TestUpdateBoid_NoNeighborsOnlyEdgeTurn(t *testing.T) {
	p := testParams()
	boids := []Boid{
		{X: 300, Y: 0, VX: 4, VY: 0},
		{X: -300, Y: 0, VX: 4, VY: 0},
	}

	next, out := UpdateBoid(boids, 0, testDT, &p)
	if out.Neighbors != 0 || out.EdgeTurns != 1 {
		t.Fatalf("neighbors=%d edgeTurns=%d, want 0 and 1", out.Neighbors, out.EdgeTurns)
	}
	if !approx(next.VX, 4-p.TurnFactor, 1e-6) || next.VY != 0 {
		t.Errorf("expected velocity (%f, 0), got (%f, %f)", 4-p.TurnFactor, next.VX, next.VY)
	}
}

func TestUpdateBoid_SeparationPushesApart(t *testing.T) {
	p := testParams()
	boids := []Boid{
		{X: 0, Y: 0},
		{X: 5, Y: 0},
	}

	left, outL := UpdateBoid(boids, 0, testDT, &p)
	right, outR := UpdateBoid(boids, 1, testDT, &p)

	if outL.Close != 1 || outR.Close != 1 {
		t.Fatalf("expected each boid to see one close neighbor, got %d and %d", outL.Close, outR.Close)
	}
	if left.VX >= 0 {
		t.Errorf("left boid should move left, vx=%f", left.VX)
	}
	if right.VX <= 0 {
		t.Errorf("right boid should move right, vx=%f", right.VX)
	}
}

func TestUpdateBoid_SeparationIsRawDelta(t *testing.T) {
	p := testParams()
	p.CenteringFactor = 0
	p.MatchingFactor = 0
	p.SpeedMin = 0
	p.SpeedMax = 1000

	boids := []Boid{
		{X: 0, Y: 0},
		{X: 5, Y: -3},
	}

	next, _ := UpdateBoid(boids, 0, testDT, &p)
	if !approx(next.VX, -5*p.AvoidFactor, 1e-6) || !approx(next.VY, 3*p.AvoidFactor, 1e-6) {
		t.Errorf("expected separation (%f, %f), got (%f, %f)",
			-5*p.AvoidFactor, 3*p.AvoidFactor, next.VX, next.VY)
	}
}

func TestUpdateBoid_AlignmentAndCohesion(t *testing.T) {
	p := testParams()
	p.SpeedMin = 0
	p.SpeedMax = 1000

	// Neighbor inside visual range but outside protected range
	boids := []Boid{
		{X: 0, Y: 0, VX: 1, VY: 0},
		{X: 20, Y: 0, VX: 0, VY: 2},
	}

	next, out := UpdateBoid(boids, 0, testDT, &p)
	if out.Neighbors != 1 || out.Close != 0 {
		t.Fatalf("neighbors=%d close=%d, want 1 and 0", out.Neighbors, out.Close)
	}

	wantVX := float32(1) + (0-1)*p.MatchingFactor + 20*p.CenteringFactor
	wantVY := float32(0) + (2-0)*p.MatchingFactor
	if !approx(next.VX, wantVX, 1e-6) || !approx(next.VY, wantVY, 1e-6) {
		t.Errorf("expected velocity (%f, %f), got (%f, %f)", wantVX, wantVY, next.VX, next.VY)
	}
}

// ---------- edges ----------

func TestAvoidEdges(t *testing.T) {
	p := testParams()

	tests := []struct {
		name      string
		x, y      float32
		wantVX    float32
		wantVY    float32
		wantTurns uint8
	}{
		{"inside", 0, 0, 0, 0, 0},
		{"exactly on edge", 250, -250, 0, 0, 0},
		{"beyond right", 250.5, 0, -0.2, 0, 1},
		{"beyond left", -251, 0, 0.2, 0, 1},
		{"beyond bottom", 0, 260, 0, -0.2, 1},
		{"beyond top", 0, -260, 0, 0.2, 1},
		{"corner", 300, 300, -0.2, -0.2, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := Boid{X: tc.x, Y: tc.y}
			turns := AvoidEdges(&b, &p)
			if turns != tc.wantTurns {
				t.Errorf("turns = %d, want %d", turns, tc.wantTurns)
			}
			if !approx(b.VX, tc.wantVX, 1e-6) || !approx(b.VY, tc.wantVY, 1e-6) {
				t.Errorf("velocity = (%f, %f), want (%f, %f)", b.VX, b.VY, tc.wantVX, tc.wantVY)
			}
		})
	}
}

// ---------- stepping ----------

func TestStep_DoesNotModifySource(t *testing.T) {
	p := testParams()
	rng := rand.New(rand.NewSource(3))
	src := randomFlock(rng, 100, 200)
	orig := append([]Boid(nil), src...)

	dst := make([]Boid, len(src))
	Step(dst, src, testDT, &p)

	for i := range src {
		if src[i] != orig[i] {
			t.Fatalf("source boid %d modified", i)
		}
	}
}

func TestStep_MatchesPerBoidUpdate(t *testing.T) {
	p := testParams()
	rng := rand.New(rand.NewSource(11))
	src := randomFlock(rng, 150, 150)

	dst := make([]Boid, len(src))
	tally := Step(dst, src, testDT, &p)

	var want Tally
	for i := range src {
		b, o := UpdateBoid(src, i, testDT, &p)
		if b != dst[i] {
			t.Fatalf("boid %d: Step gave %+v, UpdateBoid gave %+v", i, dst[i], b)
		}
		want.Add(o)
	}
	if tally != want {
		t.Errorf("tally = %+v, want %+v", tally, want)
	}
}

func TestStepInPlace_SeesEarlierUpdates(t *testing.T) {
	p := testParams()
	rng := rand.New(rand.NewSource(5))
	src := randomFlock(rng, 80, 60)

	snapshot := make([]Boid, len(src))
	Step(snapshot, src, testDT, &p)

	inPlace := append([]Boid(nil), src...)
	StepInPlace(inPlace, testDT, &p)

	// The first boid reads an untouched array in both orderings
	if inPlace[0] != snapshot[0] {
		t.Errorf("first boid differs: %+v vs %+v", inPlace[0], snapshot[0])
	}

	differ := 0
	for i := range src {
		if inPlace[i] != snapshot[i] {
			differ++
		}
	}
	if differ == 0 {
		t.Error("expected sequential in-place update to diverge from snapshot update in a dense flock")
	}
}

func TestTallyMerge(t *testing.T) {
	var a, b Tally
	a.Add(Outcome{Neighbors: 3, EdgeTurns: 1, Clamp: ClampUp})
	b.Add(Outcome{Neighbors: 2, Clamp: ClampDown, ZeroSpeed: true})
	a.Merge(b)

	want := Tally{Neighbors: 5, EdgeTurns: 1, ClampedUp: 1, ClampedDn: 1, ZeroSpeed: 1}
	if a != want {
		t.Errorf("merged tally = %+v, want %+v", a, want)
	}
}

func BenchmarkStep1000(b *testing.B) {
	p := testParams()
	src := GenerateGrid(1000, 10)
	rng := rand.New(rand.NewSource(1))
	for i := range src {
		src[i].VX = rng.Float32()*2 - 1
		src[i].VY = rng.Float32()*2 - 1
	}
	dst := make([]Boid, len(src))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Step(dst, src, testDT, &p)
		src, dst = dst, src
	}
}
