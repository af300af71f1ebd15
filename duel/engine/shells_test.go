package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateQueueInvariants(t *testing.T) {
	cfg := DefaultConfig()
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		for round := 1; round <= 5; round++ {
			for players := 2; players <= 4; players++ {
				queue := generateQueue(cfg, round, players, rng)
				spec := cfg.roundSpec(round)
				wantTotal := spec.BaseTotal + players - 2

				require.Len(t, queue, wantTotal)
				live, blank := countShells(queue)
				assert.GreaterOrEqual(t, live, 1, "every deal holds a live shell")
				assert.GreaterOrEqual(t, blank, 1, "every deal holds a blank shell")
				assert.GreaterOrEqual(t, live, spec.MinLive)
				assert.LessOrEqual(t, live, spec.MaxLive)
			}
		}
	}
}

func TestRoundSpecClampsPastTable(t *testing.T) {
	cfg := DefaultConfig()
	last := cfg.Rounds[len(cfg.Rounds)-1]
	assert.Equal(t, last, cfg.roundSpec(4))
	assert.Equal(t, last, cfg.roundSpec(99))
	assert.Equal(t, cfg.Rounds[0], cfg.roundSpec(0))
}

func TestPopShellConsumesInOrder(t *testing.T) {
	m := testMatch(t, "a", "b")
	setQueue(m, ShellLive, ShellBlank, ShellLive)

	for _, want := range []Shell{ShellLive, ShellBlank, ShellLive} {
		got, err := m.popShell()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := m.popShell()
	assert.Equal(t, ErrQueueCorrupt, err)
	assert.Equal(t, "queue_corrupt", Reason(err))
}

func TestReplenishRespectsCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ItemCapacity = 2
	m := NewMatch(cfg, []string{"a", "b"}, rand.New(rand.NewSource(3)))
	m.Start()

	for _, s := range m.Seats() {
		assert.LessOrEqual(t, s.itemTotal(), 2)
	}
}
