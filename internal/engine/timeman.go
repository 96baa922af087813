package engine

import (
	"time"

	"github.com/tanager-chess/engine/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move (overrides other time controls)
	Depth     int              // maximum search depth
	Nodes     uint64           // maximum nodes to search
	Infinite  bool             // search until stopped
	Ponder    bool             // ponder mode
}

// MoveOverhead is subtracted from the elapsed budget when deciding whether
// time is up, to leave margin for engine/GUI communication latency.
const MoveOverhead = 200 * time.Millisecond

// TimeManager handles time allocation for searches.
type TimeManager struct {
	optimumTime time.Duration // Target time for this move; may shrink as the best move stabilizes
	maximumTime time.Duration // Hard ceiling, never exceeded regardless of stability
	startTime   time.Time     // When search started
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init initializes the time manager for a new search.
// ply is the current game ply (half-move number).
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply int) {
	tm.startTime = time.Now()

	// movetime T: max_time = T.
	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}

	// infinite (or no time control given at all): max_time = infinity.
	if limits.Infinite || (limits.Time[us] == 0 && limits.MoveTime == 0) {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}

	selfTime := limits.Time[us]
	oppTime := limits.Time[us.Other()]
	selfInc := limits.Inc[us]
	fullmove := ply/2 + 1

	divider := limits.MovesToGo
	if divider == 0 {
		divider = 20 - fullmove/2
		if divider < 5 {
			divider = 5
		}
	}

	selfAdvantage := selfTime - oppTime
	opponentLead := oppTime - selfTime
	if opponentLead < 0 {
		opponentLead = 0
	}

	searchTime := (selfTime - opponentLead) / time.Duration(divider)

	incBonus := selfInc - time.Second
	if incBonus > 0 {
		searchTime += incBonus
	}

	advantageBonus := selfAdvantage - 10*time.Second
	if advantageBonus > 0 {
		searchTime += advantageBonus / 4
	}

	// Clamp into [100ms, selfTime/2].
	lowClamp := 100 * time.Millisecond
	highClamp := selfTime / 2
	if searchTime < lowClamp {
		searchTime = lowClamp
	}
	if searchTime > highClamp {
		searchTime = highClamp
	}

	// Also never go below min(selfTime/2, 3s).
	floor := selfTime / 2
	if floor > 3*time.Second {
		floor = 3 * time.Second
	}
	if searchTime < floor {
		searchTime = floor
	}

	tm.maximumTime = searchTime
	tm.optimumTime = searchTime
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop returns true if we should stop searching. Move overhead is
// subtracted from the budget so the engine replies before its clock expires.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed()+MoveOverhead >= tm.maximumTime
}

// PastOptimum returns true if we've exceeded the optimum time.
func (tm *TimeManager) PastOptimum() bool {
	return tm.Elapsed() >= tm.optimumTime
}

// AdjustForStability adjusts time allocation based on best move stability.
// If the best move hasn't changed for several depths, we can stop earlier.
// stability: number of consecutive depths with same best move
func (tm *TimeManager) AdjustForStability(stability int) {
	if stability >= 6 {
		// Very stable: use only 40% of optimum
		tm.optimumTime = tm.optimumTime * 40 / 100
	} else if stability >= 4 {
		// Stable: use only 60% of optimum
		tm.optimumTime = tm.optimumTime * 60 / 100
	} else if stability >= 2 {
		// Somewhat stable: use 80% of optimum
		tm.optimumTime = tm.optimumTime * 80 / 100
	}
}

// AdjustForInstability increases time when best move keeps changing.
// changes: number of best move changes in recent depths
func (tm *TimeManager) AdjustForInstability(changes int) {
	if changes >= 4 {
		// Very unstable: use 200% of optimum (up to maximum)
		tm.optimumTime = tm.optimumTime * 200 / 100
		if tm.optimumTime > tm.maximumTime {
			tm.optimumTime = tm.maximumTime
		}
	} else if changes >= 2 {
		// Unstable: use 150% of optimum
		tm.optimumTime = tm.optimumTime * 150 / 100
		if tm.optimumTime > tm.maximumTime {
			tm.optimumTime = tm.maximumTime
		}
	}
}
