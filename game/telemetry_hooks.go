package game

import (
	"log/slog"

	"github.com/pthm-cable/flock/stream"
)

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.frame)
	perfStats := g.perfCollector.Stats()
	g.lastStats = stats

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
}

// broadcastFrame sends the current frame to stream viewers every
// stream.every_ticks ticks.
func (g *Game) broadcastFrame() {
	if g.hub == nil || g.hub.Clients() == 0 {
		return
	}
	every := int32(max(g.cfg.Stream.EveryTicks, 1))
	if g.tick%every != 0 {
		return
	}

	g.streamBuf = stream.EncodeFrame(g.streamBuf[:0], uint32(g.tick), g.frame)
	g.hub.Broadcast(g.streamBuf)
}
