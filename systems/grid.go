package systems

// GenerateGrid lays n boids out on a square lattice centered on the origin.
// The lattice is side×side with side = ceil(sqrt(n)); boid (i, j) sits at
// (i·spacing − side·spacing/2, j·spacing − side·spacing/2) with zero velocity.
// Boids are produced with j varying fastest and the lattice is truncated to
// the first n points. The result only depends on n and spacing.
func GenerateGrid(n int, spacing float32) []Boid {
	if n <= 0 {
		return nil
	}

	side := gridSide(n)
	half := float32(side) * spacing / 2

	boids := make([]Boid, 0, n)
	for i := 0; i < side && len(boids) < n; i++ {
		for j := 0; j < side && len(boids) < n; j++ {
			boids = append(boids, Boid{
				X: float32(i)*spacing - half,
				Y: float32(j)*spacing - half,
			})
		}
	}
	return boids
}

// gridSide returns ceil(sqrt(n)) using integer arithmetic.
func gridSide(n int) int {
	side := 0
	for side*side < n {
		side++
	}
	return side
}
