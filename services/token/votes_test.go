package token

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVotes_FollowBalance(t *testing.T) {
	l, clock := newTestLedger(t)

	require.NoError(t, l.Mint(minter, alice, u(100)))
	assert.Equal(t, u(100), l.Votes(alice))
	assert.Equal(t, alice, l.Delegates(alice))

	clock.Advance(time.Second)
	require.NoError(t, l.Transfer(alice, bob, u(40)))
	assert.Equal(t, u(60), l.Votes(alice))
	assert.Equal(t, u(40), l.Votes(bob))

	clock.Advance(time.Second)
	require.NoError(t, l.Burn(minter, bob, u(40)))
	assert.True(t, l.Votes(bob).IsZero())
}

func TestDelegate(t *testing.T) {
	l, clock := newTestLedger(t)
	require.NoError(t, l.Mint(minter, alice, u(100)))
	require.NoError(t, l.Mint(minter, bob, u(10)))

	clock.Advance(time.Second)
	require.NoError(t, l.Delegate(alice, bob))
	assert.Equal(t, bob, l.Delegates(alice))
	assert.True(t, l.Votes(alice).IsZero())
	assert.Equal(t, u(110), l.Votes(bob))

	// 委托后的余额变化跟随受托人
	clock.Advance(time.Second)
	require.NoError(t, l.Mint(minter, alice, u(5)))
	assert.Equal(t, u(115), l.Votes(bob))

	// 收回委托
	clock.Advance(time.Second)
	require.NoError(t, l.Delegate(alice, alice))
	assert.Equal(t, u(105), l.Votes(alice))
	assert.Equal(t, u(10), l.Votes(bob))
}

func TestPastVotes_Snapshot(t *testing.T) {
	l, clock := newTestLedger(t)
	t0 := clock.Now()

	require.NoError(t, l.Mint(minter, alice, u(100)))
	t1 := clock.Advance(time.Minute)
	require.NoError(t, l.Mint(minter, alice, u(50)))
	snapshot := clock.Advance(time.Minute)

	// 快照时间点尚未过去
	_, err := l.PastVotes(alice, snapshot)
	require.ErrorIs(t, err, ErrFutureLookup)
	_, err = l.PastTotalSupply(snapshot)
	require.ErrorIs(t, err, ErrFutureLookup)

	clock.Advance(time.Second)
	require.NoError(t, l.Burn(minter, alice, u(150)))

	tests := []struct {
		name string
		at   time.Time
		want *uint256.Int
	}{
		{name: "before any mint", at: t0.Add(-time.Second), want: u(0)},
		{name: "first mint", at: t0, want: u(100)},
		{name: "second mint", at: t1, want: u(150)},
		{name: "snapshot", at: snapshot, want: u(150)},
	}

	clock.Advance(time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes, err := l.PastVotes(alice, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, votes)

			supply, err := l.PastTotalSupply(tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, supply)
		})
	}

	assert.True(t, l.Votes(alice).IsZero())
}

func TestCheckpoints_SameInstantOverwrites(t *testing.T) {
	var cps checkpoints
	at := time.Unix(100, 0)
	cps.push(at, u(1))
	cps.push(at, u(2))
	cps.push(at.Add(-time.Second), u(3))
	require.Len(t, cps, 1)
	assert.Equal(t, u(3), cps.latest())
	assert.Equal(t, u(3), cps.upperLookup(at))
	assert.True(t, cps.upperLookup(at.Add(-time.Second)).IsZero())
}
