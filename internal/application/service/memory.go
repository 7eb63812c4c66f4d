package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

const maxObservationLen = 20000

// TokenCounter estimates the prompt cost of a rendered fragment.
type TokenCounter func(text string) int

type MemoryOption func(*ObservationMemory)

func WithTokenCounter(counter TokenCounter) MemoryOption {
	return func(m *ObservationMemory) {
		if counter != nil {
			m.countTokens = counter
		}
	}
}

// ObservationMemory is the append-only ledger of one session.
type ObservationMemory struct {
	mu          sync.RWMutex
	items       []entity.Observation
	nextSeq     int
	countTokens TokenCounter
}

func NewObservationMemory(opts ...MemoryOption) *ObservationMemory {
	m := &ObservationMemory{
		nextSeq:     1,
		countTokens: DefaultTokenCounter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append assigns the next sequence number and stores a copy of obs.
func (m *ObservationMemory) Append(obs entity.Observation) entity.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs.Seq = m.nextSeq
	m.nextSeq++
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	m.items = append(m.items, obs)
	return obs
}

func (m *ObservationMemory) All() []entity.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entity.Observation, len(m.items))
	copy(out, m.items)
	return out
}

func (m *ObservationMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *ObservationMemory) Get(seq int) (entity.Observation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// seq numbers are dense and start at 1
	if seq < 1 || seq > len(m.items) {
		return entity.Observation{}, false
	}
	return m.items[seq-1], true
}

func (m *ObservationMemory) Last(n int) []entity.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(m.items) {
		n = len(m.items)
	}
	out := make([]entity.Observation, n)
	copy(out, m.items[len(m.items)-n:])
	return out
}

func (m *ObservationMemory) ToolInvocations() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, o := range m.items {
		if o.IsToolInvocation() {
			count++
		}
	}
	return count
}

// SinceLastReflection counts tool observations appended after the most recent reflection.
func (m *ObservationMemory) SinceLastReflection() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].Kind == entity.ObservationReflection {
			break
		}
		count++
	}
	return count
}

type RenderOptions struct {
	// MaxItems caps the number of tool observations shown. Zero means no cap.
	MaxItems int
	// MaxTokens caps the estimated size of the rendering. Zero means no cap.
	MaxTokens int
}

// RenderContext renders the ledger for the planner.
//
// Truncation policy: reflection notes are always kept. Tool observations are
// kept newest first while both budgets allow; the newest one is kept even if it
// alone exceeds the token budget. Everything older than the first dropped tool
// observation is dropped too and replaced by one marker line naming the
// omitted seq range. The result is always in seq order.
func (m *ObservationMemory) RenderContext(opts RenderOptions) string {
	items := m.All()
	if len(items) == 0 {
		return "No observations yet."
	}

	blocks := make([]string, len(items))
	used := 0
	for i, o := range items {
		blocks[i] = renderObservation(o)
		if o.Kind == entity.ObservationReflection {
			used += m.countTokens(blocks[i])
		}
	}

	keep := make([]bool, len(items))
	kept := 0
	cut := -1
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind == entity.ObservationReflection {
			keep[i] = true
			continue
		}
		if cut >= 0 {
			continue
		}
		cost := m.countTokens(blocks[i])
		overItems := opts.MaxItems > 0 && kept >= opts.MaxItems
		overTokens := opts.MaxTokens > 0 && used+cost > opts.MaxTokens
		if kept > 0 && (overItems || overTokens) {
			cut = i
			continue
		}
		keep[i] = true
		kept++
		used += cost
	}

	var sb strings.Builder
	if cut >= 0 {
		first, last, omitted := 0, 0, 0
		for i := 0; i <= cut; i++ {
			if keep[i] {
				continue
			}
			if omitted == 0 {
				first = items[i].Seq
			}
			last = items[i].Seq
			omitted++
		}
		sb.WriteString(fmt.Sprintf("[omitted #%d-#%d: %d older tool observations]\n", first, last, omitted))
	}
	for i, block := range blocks {
		if keep[i] {
			sb.WriteString(block)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderObservation(o entity.Observation) string {
	var sb strings.Builder
	if o.Kind == entity.ObservationReflection {
		sb.WriteString(fmt.Sprintf("[#%d] reflection\n", o.Seq))
		writeIndented(&sb, o.Reflection)
		return sb.String()
	}

	status := "ok"
	if o.Failed() {
		status = "error:" + string(o.ErrorKind)
	}
	args := string(o.Args)
	if args == "" {
		args = "{}"
	}
	sb.WriteString(fmt.Sprintf("[#%d] tool=%s args=%s status=%s", o.Seq, o.Tool, args, status))
	if len(o.Provenance.ClipIndices) > 0 {
		sb.WriteString(fmt.Sprintf(" clips=%v", o.Provenance.ClipIndices))
	}
	sb.WriteString("\n")

	text := o.Output
	if len(text) > maxObservationLen {
		text = TruncateUTF8(text, maxObservationLen) + "\n... (truncated)"
	}
	writeIndented(&sb, text)
	return sb.String()
}

// Body lines are indented so that only header lines start with "[#".
func writeIndented(sb *strings.Builder, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

var renderedHeader = regexp.MustCompile(`(?m)^\[#(\d+)\] `)

// ParseRendered returns the seq numbers of the observations present in a
// RenderContext output, in order of appearance.
func ParseRendered(text string) []int {
	matches := renderedHeader.FindAllStringSubmatch(text, -1)
	seqs := make([]int, 0, len(matches))
	for _, m := range matches {
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	return seqs
}
