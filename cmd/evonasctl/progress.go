package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"evonas/pkg/evonas"
)

const barWidth = 30

// progressReporter draws a bar on terminals and prints one line per
// evaluated candidate elsewhere.
type progressReporter struct {
	mu        sync.Mutex
	out       io.Writer
	tty       bool
	drawn     bool
	evaluated int
}

func newProgressReporter(f *os.File) *progressReporter {
	return &progressReporter{
		out: f,
		tty: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()),
	}
}

func (p *progressReporter) progress(candidate string, fraction float64) {
	if !p.tty {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Seeding can push the fraction past 1.
	shown := min(max(fraction, 0), 1)
	filled := int(shown * barWidth)
	fmt.Fprintf(p.out, "\r[%s%s] %5.1f%% %s", strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), fraction*100, candidate)
	p.drawn = true
}

func (p *progressReporter) candidate(c evonas.CandidateItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evaluated++
	if p.tty {
		return
	}
	fmt.Fprintf(p.out, "%s evaluation: %s phase=%s score=%.6f mutations=%s took=%s\n",
		humanize.Ordinal(p.evaluated), c.Name, c.Phase, c.Score, strings.Join(c.Mutations, "+"), c.Elapsed.Round(time.Millisecond))
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}
