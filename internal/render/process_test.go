package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProgressLine(t *testing.T) {
	p := NewProcessContext("luxconsole", t.TempDir())
	p.halt = HaltConditions{SamplesPerPixel: 100}

	p.parseProgressLine("12s - 24.50 S/p 1850 S/s Eff: 87.3")

	assert.Equal(t, 24.5, p.Stat(StatSamplesPx))
	assert.Equal(t, 1850.0, p.Stat(StatSamplesSec))
	assert.Equal(t, 87.3, p.Stat(StatEfficiency))
	assert.Zero(t, p.Stat(StatEnoughSamples))
}

func TestEnoughSamplesFlagSetAtHaltThreshold(t *testing.T) {
	p := NewProcessContext("luxconsole", t.TempDir())
	p.halt = HaltConditions{SamplesPerPixel: 100}

	p.parseProgressLine("105.00 S/p 900 S/s")

	assert.Equal(t, 1.0, p.Stat(StatEnoughSamples))
}

func TestUnknownStatisticReadsZero(t *testing.T) {
	p := NewProcessContext("luxconsole", t.TempDir())
	assert.Zero(t, p.Stat(Statistic("bogus")))
	assert.Zero(t, p.Stat(StatSecElapsed))
}

func TestStatsString(t *testing.T) {
	s := Stats{SecElapsed: 90, SamplesPx: 12.5, SamplesSec: 1500, Efficiency: 80, ThreadCount: 4}
	assert.Equal(t, "1m30s elapsed | 12.50 S/p | 1500 S/s | eff 80% | 4 threads", s.String())
}
