package miner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropUpdateRendezvous(t *testing.T) {
	m := &Miner{}

	fut := m.armDropUpdate("expected")
	m.completeDropUpdate("expected")

	select {
	case ok := <-fut:
		assert.True(t, ok)
	default:
		t.Fatal("rendezvous not completed")
	}
}

func TestDropUpdateRendezvousWrongDrop(t *testing.T) {
	m := &Miner{}

	fut := m.armDropUpdate("expected")
	m.completeDropUpdate("someone-else")

	select {
	case ok := <-fut:
		assert.False(t, ok, "a different drop progressing does not confirm the minute")
	default:
		t.Fatal("rendezvous not completed")
	}
}

func TestDropUpdateRendezvousIsOneShot(t *testing.T) {
	m := &Miner{}

	fut := m.armDropUpdate("expected")
	m.completeDropUpdate("expected")
	// A second completion after the first must not panic or block.
	m.completeDropUpdate("expected")

	require.True(t, <-fut)

	select {
	case <-fut:
		t.Fatal("rendezvous fired twice")
	default:
	}
}

func TestCompleteDropUpdateWithoutArmedRendezvous(t *testing.T) {
	m := &Miner{}
	// Drop-progress events arrive outside a heartbeat cycle too.
	m.completeDropUpdate("whatever")

	m.armDropUpdate("expected")
	m.disarmDropUpdate()
	m.completeDropUpdate("expected")
}

func TestTakeBumpTickOncePerMinute(t *testing.T) {
	m := &Miner{}

	assert.True(t, m.takeBumpTick())
	assert.False(t, m.takeBumpTick(), "same wall-clock minute")

	m.dropMu.Lock()
	m.lastBumpMinute--
	m.dropMu.Unlock()
	assert.True(t, m.takeBumpTick(), "a new minute allows one bump")
}
