package custody

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestFund(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Fund(alice, 100))
	require.NoError(t, b.Fund(alice, 50))
	assert.Equal(t, uint64(150), b.BalanceOf(alice))
	assert.Zero(t, b.BalanceOf(bob))

	assert.ErrorIs(t, b.Fund(common.Address{}, 1), ErrInvalidAccount)
	assert.ErrorIs(t, b.Fund(bob, 0), ErrZeroAmount)
	assert.ErrorIs(t, b.Fund(bob, math.MaxUint64), ErrInsufficientFunds)
	assert.Zero(t, b.BalanceOf(bob))
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name    string
		from    common.Address
		to      common.Address
		amount  uint64
		wantErr error
	}{
		{name: "ok", from: alice, to: bob, amount: 40},
		{name: "whole balance", from: alice, to: bob, amount: 100},
		{name: "zero amount", from: alice, to: bob, amount: 0, wantErr: ErrZeroAmount},
		{name: "insufficient", from: alice, to: bob, amount: 101, wantErr: ErrInsufficientFunds},
		{name: "zero recipient", from: alice, to: common.Address{}, amount: 1, wantErr: ErrInvalidAccount},
		{name: "self transfer", from: alice, to: alice, amount: 1, wantErr: ErrInvalidAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBank()
			require.NoError(t, b.Fund(alice, 100))

			err := b.Transfer(context.Background(), tt.from, tt.to, tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uint64(100), b.BalanceOf(alice))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 100-tt.amount, b.BalanceOf(alice))
			assert.Equal(t, tt.amount, b.BalanceOf(tt.to))
		})
	}
}

func TestTransfer_ReceiverRejects(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Fund(alice, 100))

	refusal := errors.New("not accepting")
	require.NoError(t, b.SetReceiver(bob, ReceiverFunc(func(context.Context, common.Address, uint64) error {
		return refusal
	})))

	err := b.Transfer(context.Background(), alice, bob, 30)
	require.ErrorIs(t, err, ErrRecipientRejected)
	require.ErrorIs(t, err, refusal)
	assert.Equal(t, uint64(100), b.BalanceOf(alice))
	assert.Zero(t, b.BalanceOf(bob))

	require.NoError(t, b.SetReceiver(bob, nil))
	require.NoError(t, b.Transfer(context.Background(), alice, bob, 10))
	assert.Equal(t, uint64(10), b.BalanceOf(bob))
}

func TestTransfer_HookSeesDebitBeforeCredit(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Fund(alice, 100))

	var senderSeen, recipientSeen uint64
	var nested error
	require.NoError(t, b.SetReceiver(bob, ReceiverFunc(func(ctx context.Context, from common.Address, amount uint64) error {
		senderSeen = b.BalanceOf(from)
		recipientSeen = b.BalanceOf(bob)
		// 回调内不持锁，允许再次转账
		nested = b.Transfer(ctx, from, common.HexToAddress("0x01"), 5)
		return nil
	})))

	require.NoError(t, b.Transfer(context.Background(), alice, bob, 60))
	require.NoError(t, nested)
	assert.Equal(t, uint64(40), senderSeen)
	assert.Zero(t, recipientSeen)
	assert.Equal(t, uint64(35), b.BalanceOf(alice))
	assert.Equal(t, uint64(60), b.BalanceOf(bob))
}

func TestClaim(t *testing.T) {
	vaultAddr := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	refusal := errors.New("not accepting")
	hook := ReceiverFunc(func(context.Context, common.Address, uint64) error { return refusal })

	b := NewBank()
	require.NoError(t, b.Fund(alice, 100))
	require.NoError(t, b.Fund(bob, 5))

	_, err := b.Claim(bob, hook)
	assert.ErrorIs(t, err, ErrInvalidAccount, "non-empty account")
	_, err = b.Claim(common.Address{}, hook)
	assert.ErrorIs(t, err, ErrInvalidAccount)
	_, err = b.Claim(vaultAddr, nil)
	assert.ErrorIs(t, err, ErrInvalidAccount)

	v, err := b.Claim(vaultAddr, hook)
	require.NoError(t, err)
	assert.Equal(t, vaultAddr, v.Address())

	_, err = b.Claim(vaultAddr, hook)
	assert.ErrorIs(t, err, ErrInvalidAccount, "claimed twice")

	// Vault 收款不经过钩子
	require.NoError(t, v.Collect(alice, 30))
	assert.Equal(t, uint64(30), v.Balance())
	assert.Equal(t, uint64(70), b.BalanceOf(alice))
	assert.ErrorIs(t, v.Collect(alice, 0), ErrZeroAmount)
	assert.ErrorIs(t, v.Collect(alice, 71), ErrInsufficientFunds)

	// 已认领账户只能经由 Vault 入账或转出
	assert.ErrorIs(t, b.Fund(vaultAddr, 50), ErrInvalidAccount)
	assert.ErrorIs(t, b.Transfer(context.Background(), vaultAddr, bob, 10), ErrInvalidAccount)
	assert.ErrorIs(t, b.SetReceiver(vaultAddr, nil), ErrInvalidAccount)
	err = b.Transfer(context.Background(), alice, vaultAddr, 10)
	assert.ErrorIs(t, err, ErrRecipientRejected)
	assert.ErrorIs(t, err, refusal)
	assert.Equal(t, uint64(30), v.Balance())

	require.NoError(t, v.Transfer(context.Background(), bob, 10))
	require.NoError(t, v.Return(alice, 5))
	assert.Equal(t, uint64(15), v.Balance())
	assert.Equal(t, uint64(15), b.BalanceOf(bob))
	assert.Equal(t, uint64(75), b.BalanceOf(alice))
}

func TestVault_RefusesOtherCustodyAccounts(t *testing.T) {
	hook := ReceiverFunc(func(context.Context, common.Address, uint64) error { return nil })
	b := NewBank()
	require.NoError(t, b.Fund(alice, 100))

	first, err := b.Claim(common.HexToAddress("0xe1"), hook)
	require.NoError(t, err)
	second, err := b.Claim(common.HexToAddress("0xe2"), hook)
	require.NoError(t, err)
	require.NoError(t, first.Collect(alice, 40))

	assert.ErrorIs(t, second.Collect(first.Address(), 10), ErrInvalidAccount)
	assert.ErrorIs(t, first.Return(second.Address(), 10), ErrInvalidAccount)
	assert.Equal(t, uint64(40), first.Balance())
	assert.Zero(t, second.Balance())
}
