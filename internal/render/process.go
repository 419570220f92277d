package render

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	samplesPxRe  = regexp.MustCompile(`([\d.]+)\s*S/p`)
	samplesSecRe = regexp.MustCompile(`([\d.]+)k?\s*S/s`)
	efficiencyRe = regexp.MustCompile(`Eff(?:iciency)?:?\s*([\d.]+)`)
)

// ProcessContext drives an external renderer binary (luxconsole) and tracks
// its progress by scanning the console output, the same way the engine
// runners supervise their tools.
type ProcessContext struct {
	binary  string
	workDir string

	mu        sync.Mutex
	cmd       *exec.Cmd
	startedAt time.Time
	halt      HaltConditions
	stats     map[Statistic]float64
	done      chan struct{}
}

func NewProcessContext(binary, workDir string) *ProcessContext {
	return &ProcessContext{
		binary:  binary,
		workDir: workDir,
		stats:   make(map[Statistic]float64),
	}
}

// Parse launches the renderer on the scene file. The process owns the whole
// render; thread count and halt conditions are fixed at launch.
//
// ctx covers the launch only. The render must outlive the assignment call
// that started it, so the process is detached from the caller's context and
// stopped through Exit instead.
func (p *ProcessContext) Parse(ctx context.Context, scenePath string, threads int, halt HaltConditions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("render already in progress")
	}

	args := []string{"--threads", strconv.Itoa(threads)}
	if halt.SamplesPerPixel > 0 {
		args = append(args, "--haltspp", strconv.Itoa(halt.SamplesPerPixel))
	}
	if halt.Seconds > 0 {
		args = append(args, "--halttime", strconv.Itoa(halt.Seconds))
	}
	args = append(args, scenePath)

	cmd := exec.Command(p.binary, args...)
	cmd.Dir = p.workDir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.binary, err)
	}

	p.cmd = cmd
	p.startedAt = time.Now()
	p.halt = halt
	p.stats = make(map[Statistic]float64)
	p.done = make(chan struct{})

	go p.supervise(cmd, stdout)
	return nil
}

func (p *ProcessContext) supervise(cmd *exec.Cmd, stdout interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		p.parseProgressLine(scanner.Text())
	}

	err := cmd.Wait()

	p.mu.Lock()
	if err != nil {
		p.stats[StatTerminated] = 1
		log.Warn().Err(err).Str("binary", p.binary).Msg("renderer process exited with error")
	} else {
		p.stats[StatFilmIsReady] = 1
	}
	close(p.done)
	p.cmd = nil
	p.mu.Unlock()
}

func (p *ProcessContext) parseProgressLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m := samplesPxRe.FindStringSubmatch(line); len(m) == 2 {
		v, _ := strconv.ParseFloat(m[1], 64)
		p.stats[StatSamplesPx] = v
		if p.halt.SamplesPerPixel > 0 && v >= float64(p.halt.SamplesPerPixel) {
			p.stats[StatEnoughSamples] = 1
		}
	}
	if m := samplesSecRe.FindStringSubmatch(line); len(m) == 2 {
		v, _ := strconv.ParseFloat(m[1], 64)
		p.stats[StatSamplesSec] = v
	}
	if m := efficiencyRe.FindStringSubmatch(line); len(m) == 2 {
		v, _ := strconv.ParseFloat(m[1], 64)
		p.stats[StatEfficiency] = v
	}
}

func (p *ProcessContext) Stat(name Statistic) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == StatSecElapsed {
		if p.startedAt.IsZero() {
			return 0
		}
		return time.Since(p.startedAt).Seconds()
	}
	return p.stats[name]
}

// Exit asks the renderer process to stop.
func (p *ProcessContext) Exit() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Wait blocks until the current render has fully stopped. No-op when the
// context is idle.
func (p *ProcessContext) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}
