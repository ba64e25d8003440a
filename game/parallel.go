package game

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/flock/systems"
)

// defaultParallelThreshold is the minimum boid count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const defaultParallelThreshold = 64

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	candidates []int32
	tally      systems.Tally
}

// workChunk represents a range of boids for a worker to process.
type workChunk struct {
	start, end int
}

// stepJob is the read-only input shared by all workers for one step.
type stepJob struct {
	dst, src []systems.Boid
	dt       float32
	params   *systems.Params
	grid     *systems.SpatialGrid // nil for the brute-force scan
}

// parallelState runs the flocking step over a persistent worker pool.
// Every boid reads the same snapshot and writes only its own slot, so the
// result matches systems.Step regardless of how the chunks are scheduled.
type parallelState struct {
	numWorkers int
	threshold  int
	scratches  []workerScratch
	job        stepJob

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// newParallelState creates a pool of the given size (0 = GOMAXPROCS).
// Workers start lazily on the first step above threshold.
func newParallelState(workers, threshold int) *parallelState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = defaultParallelThreshold
	}
	scratches := make([]workerScratch, workers)
	for i := range scratches {
		scratches[i].candidates = make([]int32, 0, 64)
	}
	return &parallelState{
		numWorkers: workers,
		threshold:  threshold,
		scratches:  scratches,
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.computeChunk(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// step writes the next frame of src into dst and returns the merged tally.
// grid, when non-nil, must already hold src.
func (p *parallelState) step(dst, src []systems.Boid, dt float32, params *systems.Params, grid *systems.SpatialGrid) systems.Tally {
	n := len(src)
	p.job = stepJob{dst: dst[:n], src: src, dt: dt, params: params, grid: grid}
	for i := range p.scratches {
		p.scratches[i].tally = systems.Tally{}
	}

	if n < p.threshold {
		p.computeChunk(0, n, &p.scratches[0])
	} else {
		p.computeParallel(n)
	}

	var total systems.Tally
	for i := range p.scratches {
		total.Merge(p.scratches[i].tally)
	}
	p.job = stepJob{}
	return total
}

// computeParallel dispatches work to the worker pool and waits for it.
func (p *parallelState) computeParallel(n int) {
	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// computeChunk updates boids [i0, i1) of the current job.
func (p *parallelState) computeChunk(i0, i1 int, scratch *workerScratch) {
	job := &p.job
	for i := i0; i < i1; i++ {
		var b systems.Boid
		var o systems.Outcome
		if job.grid != nil {
			self := job.src[i]
			scratch.candidates = job.grid.QueryInto(scratch.candidates[:0], self.X, self.Y, job.params.VisualRange)
			b, o = systems.UpdateBoidCandidates(job.src, i, scratch.candidates, job.dt, job.params)
		} else {
			b, o = systems.UpdateBoid(job.src, i, job.dt, job.params)
		}
		job.dst[i] = b
		scratch.tally.Add(o)
	}
}
