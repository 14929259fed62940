package token

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/wallet"
)

var (
	minter = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// manualClock 手动推进的时钟
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newTestLedger(t *testing.T) (*Ledger, *manualClock) {
	t.Helper()
	clock := newManualClock()
	l, err := NewLedger("Campaign Claim", "CLAIM", minter, WithClock(clock))
	require.NoError(t, err)
	return l, clock
}

func TestNewLedger(t *testing.T) {
	l, _ := newTestLedger(t)
	assert.Equal(t, "Campaign Claim", l.Name())
	assert.Equal(t, "CLAIM", l.Symbol())
	assert.Equal(t, uint8(18), l.Decimals())
	assert.Equal(t, minter, l.Minter())
	assert.True(t, l.TotalSupply().IsZero())

	_, err := NewLedger("x", "X", common.Address{})
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestMintBurn_OnlyMinter(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.Mint(alice, alice, u(100))
	require.ErrorIs(t, err, ErrNotMinter)
	assert.Equal(t, types.ClassAuthorization, types.ClassOf(err))

	require.NoError(t, l.Mint(minter, alice, u(100)))
	assert.Equal(t, u(100), l.BalanceOf(alice))
	assert.Equal(t, u(100), l.TotalSupply())

	assert.ErrorIs(t, l.Burn(alice, alice, u(10)), ErrNotMinter)
	assert.ErrorIs(t, l.Burn(bob, alice, u(10)), ErrNotMinter)

	require.NoError(t, l.Burn(minter, alice, u(40)))
	assert.Equal(t, u(60), l.BalanceOf(alice))
	assert.Equal(t, u(60), l.TotalSupply())
}

func TestBurn_InsufficientBalanceIsAtomic(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Mint(minter, alice, u(50)))

	err := l.Burn(minter, alice, u(51))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, u(50), l.BalanceOf(alice))
	assert.Equal(t, u(50), l.TotalSupply())
}

func TestMint_RejectsZeroAddressAndOverflow(t *testing.T) {
	l, _ := newTestLedger(t)
	assert.ErrorIs(t, l.Mint(minter, common.Address{}, u(1)), ErrZeroAddress)

	max := new(uint256.Int).SetAllOne()
	require.NoError(t, l.Mint(minter, alice, max))
	assert.ErrorIs(t, l.Mint(minter, bob, u(1)), ErrSupplyOverflow)
	assert.True(t, l.BalanceOf(bob).IsZero())
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Mint(minter, alice, u(100)))

	require.NoError(t, l.Transfer(alice, bob, u(30)))
	assert.Equal(t, u(70), l.BalanceOf(alice))
	assert.Equal(t, u(30), l.BalanceOf(bob))

	assert.ErrorIs(t, l.Transfer(bob, carol, u(31)), ErrInsufficientBalance)
	assert.ErrorIs(t, l.Transfer(alice, common.Address{}, u(1)), ErrZeroAddress)

	// 自转账不改变余额
	require.NoError(t, l.Transfer(alice, alice, u(70)))
	assert.Equal(t, u(70), l.BalanceOf(alice))
	assert.Equal(t, u(100), l.TotalSupply())
}

func TestApproveTransferFrom(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Mint(minter, alice, u(100)))

	require.NoError(t, l.Approve(alice, bob, u(40)))
	assert.Equal(t, u(40), l.Allowance(alice, bob))

	assert.ErrorIs(t, l.TransferFrom(bob, alice, carol, u(41)), ErrInsufficientAllowance)

	require.NoError(t, l.TransferFrom(bob, alice, carol, u(25)))
	assert.Equal(t, u(15), l.Allowance(alice, bob))
	assert.Equal(t, u(25), l.BalanceOf(carol))
	assert.Equal(t, u(75), l.BalanceOf(alice))

	// 余额不足时额度不被扣减
	require.NoError(t, l.Approve(alice, bob, u(1000)))
	assert.ErrorIs(t, l.TransferFrom(bob, alice, carol, u(500)), ErrInsufficientBalance)
	assert.Equal(t, u(1000), l.Allowance(alice, bob))
}

func TestPermit(t *testing.T) {
	l, clock := newTestLedger(t)
	owner, err := wallet.NewWallet()
	require.NoError(t, err)

	deadline := clock.Now().Add(time.Hour)
	req, err := l.SignPermit(owner, bob, u(500), deadline)
	require.NoError(t, err)

	require.NoError(t, l.Permit(req))
	assert.Equal(t, u(500), l.Allowance(owner.Address(), bob))
	assert.Equal(t, uint64(1), l.Nonce(owner.Address()))

	// 重放：nonce 已消耗
	assert.ErrorIs(t, l.Permit(req), ErrInvalidSignature)
}

func TestPermit_Rejections(t *testing.T) {
	l, clock := newTestLedger(t)
	owner, err := wallet.NewWallet()
	require.NoError(t, err)
	other, err := wallet.NewWallet()
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		req, err := l.SignPermit(owner, bob, u(1), clock.Now().Add(time.Minute))
		require.NoError(t, err)
		clock.Advance(2 * time.Minute)
		assert.ErrorIs(t, l.Permit(req), ErrPermitExpired)
	})

	t.Run("wrong signer", func(t *testing.T) {
		req, err := l.SignPermit(other, bob, u(1), clock.Now().Add(time.Hour))
		require.NoError(t, err)
		req.Owner = owner.Address()
		assert.ErrorIs(t, l.Permit(req), ErrInvalidSignature)
	})

	t.Run("tampered value", func(t *testing.T) {
		req, err := l.SignPermit(owner, bob, u(1), clock.Now().Add(time.Hour))
		require.NoError(t, err)
		req.Value = u(1_000_000)
		assert.ErrorIs(t, l.Permit(req), ErrInvalidSignature)
	})

	t.Run("malformed signature", func(t *testing.T) {
		req, err := l.SignPermit(owner, bob, u(1), clock.Now().Add(time.Hour))
		require.NoError(t, err)
		req.Signature = req.Signature[:10]
		assert.ErrorIs(t, l.Permit(req), ErrInvalidSignature)
	})

	assert.True(t, l.Allowance(owner.Address(), bob).IsZero())
	assert.Equal(t, uint64(0), l.Nonce(owner.Address()))
}
