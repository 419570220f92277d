// Package render defines the binding to a rendering engine. The engine is
// driven through a closed set of typed operations — there is no pass-through
// of arbitrary method names to the engine, so a misspelled operation is a
// compile error instead of a runtime failure on the worker.
package render

import (
	"context"
	"fmt"
	"time"
)

// Statistic names the numeric progress counters a context can report.
// Unknown names read as zero.
type Statistic string

const (
	StatSecElapsed    Statistic = "secElapsed"
	StatSamplesPx     Statistic = "samplesPx"
	StatSamplesSec    Statistic = "samplesSec"
	StatEfficiency    Statistic = "efficiency"
	StatFilmIsReady   Statistic = "filmIsReady"
	StatTerminated    Statistic = "terminated"
	StatEnoughSamples Statistic = "enoughSamples"
)

// HaltConditions bound a render. A non-positive value means unbounded for
// that dimension; at least one must be positive for a job to be dispatched.
type HaltConditions struct {
	SamplesPerPixel int
	Seconds         int
}

// Context is a handle on one rendering engine instance.
//
// Parse begins parsing and rendering the scene asynchronously and returns
// once the render has been started (or refused). Exit requests termination;
// Wait blocks until the engine has fully stopped.
type Context interface {
	Parse(ctx context.Context, scenePath string, threads int, halt HaltConditions) error
	Stat(name Statistic) float64
	Exit()
	Wait()
}

// Stats is the snapshot of progress counters shipped to the dispatcher.
type Stats struct {
	SecElapsed  float64 `json:"secElapsed"`
	SamplesPx   float64 `json:"samplesPx"`
	SamplesSec  float64 `json:"samplesSec"`
	Efficiency  float64 `json:"efficiency"`
	ThreadCount int     `json:"threadCount"`
}

// String renders the snapshot the way operators read it on a console.
func (s Stats) String() string {
	elapsed := time.Duration(s.SecElapsed * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%s elapsed | %.2f S/p | %.0f S/s | eff %.0f%% | %d threads",
		elapsed, s.SamplesPx, s.SamplesSec, s.Efficiency, s.ThreadCount)
}

// Snapshot gathers the reportable counters from a context.
func Snapshot(c Context, threads int) Stats {
	return Stats{
		SecElapsed:  c.Stat(StatSecElapsed),
		SamplesPx:   c.Stat(StatSamplesPx),
		SamplesSec:  c.Stat(StatSamplesSec),
		Efficiency:  c.Stat(StatEfficiency),
		ThreadCount: threads,
	}
}
