package engine

import (
	"encoding/json"
	"math/rand"
)

// Shell is one chambered round: live or blank.
type Shell int

const (
	ShellBlank Shell = iota
	ShellLive
)

func (s Shell) String() string {
	if s == ShellLive {
		return "live"
	}
	return "blank"
}

// Shells cross the wire as their names, never as raw ints.
func (s Shell) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// RoundSpec controls the deal for one round number. Totals scale with the
// number of seated players, live counts skew upward in later rounds.
type RoundSpec struct {
	BaseTotal int // shells for a 2-player round
	MinLive   int
	MaxLive   int
}

// roundSpec returns the rule-table entry for a round, clamping past the end
// of the table so late rounds reuse the last (largest) spec.
func (c Config) roundSpec(round int) RoundSpec {
	if round < 1 {
		round = 1
	}
	if round > len(c.Rounds) {
		round = len(c.Rounds)
	}
	return c.Rounds[round-1]
}

// generateQueue deals the shell multiset for a round and shuffles it.
// The result always holds at least one live and one blank shell.
func generateQueue(cfg Config, round, playerCount int, rng *rand.Rand) []Shell {
	spec := cfg.roundSpec(round)
	total := spec.BaseTotal + (playerCount - 2)
	if total < 2 {
		total = 2
	}

	minLive := spec.MinLive
	if minLive < 1 {
		minLive = 1
	}
	maxLive := spec.MaxLive
	if maxLive > total-1 {
		maxLive = total - 1 // leave room for a blank
	}
	if maxLive < minLive {
		maxLive = minLive
	}
	live := minLive + rng.Intn(maxLive-minLive+1)

	queue := make([]Shell, total)
	for i := 0; i < live; i++ {
		queue[i] = ShellLive
	}
	rng.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})
	return queue
}

// popShell consumes the front shell. An empty queue here means a round
// boundary was missed, which is fatal to the match.
func (m *Match) popShell() (Shell, error) {
	if len(m.queue) == 0 {
		return ShellBlank, ErrQueueCorrupt
	}
	shell := m.queue[0]
	m.queue = m.queue[1:]
	m.consumed++
	return shell, nil
}

// peek exposes queue positions to the item resolver only; 0 is the chamber.
func (m *Match) peek(pos int) (Shell, bool) {
	if pos < 0 || pos >= len(m.queue) {
		return ShellBlank, false
	}
	return m.queue[pos], true
}

func countShells(queue []Shell) (live, blank int) {
	for _, s := range queue {
		if s == ShellLive {
			live++
		} else {
			blank++
		}
	}
	return
}
