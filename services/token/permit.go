package token

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/weisyn/campaign-escrow-go/types"
	"github.com/weisyn/campaign-escrow-go/utils"
	"github.com/weisyn/campaign-escrow-go/wallet"
)

// permitTypeTag 签名域前缀
var permitTypeTag = []byte("ClaimTokenPermit/v1")

// PermitRequest 链下签名授权
type PermitRequest struct {
	Owner     common.Address // 授权人
	Spender   common.Address // 被授权人
	Value     *uint256.Int   // 授权额度
	Deadline  time.Time      // 签名有效期（含）
	Signature []byte         // 65 字节可恢复签名
}

// Nonce 查询 owner 的下一个 permit nonce
func (l *Ledger) Nonce(owner common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nonces[owner]
}

// PermitDigest 计算 owner 需要签名的摘要
//
// keccak256(tag || name || minter || owner || spender || value || nonce || deadline)
func (l *Ledger) PermitDigest(owner, spender common.Address, value *uint256.Int, nonce uint64, deadline time.Time) []byte {
	valueBytes := value.Bytes32()

	var tail [16]byte
	binary.BigEndian.PutUint64(tail[:8], nonce)
	binary.BigEndian.PutUint64(tail[8:], uint64(deadline.Unix()))

	return ethcrypto.Keccak256(
		permitTypeTag,
		[]byte(l.name),
		l.minter.Bytes(),
		owner.Bytes(),
		spender.Bytes(),
		valueBytes[:],
		tail[:],
	)
}

// SignPermit 使用钱包为 Permit 生成签名（便捷函数）
func (l *Ledger) SignPermit(w wallet.Wallet, spender common.Address, value *uint256.Int, deadline time.Time) (*PermitRequest, error) {
	digest := l.PermitDigest(w.Address(), spender, value, l.Nonce(w.Address()), deadline)
	sig, err := w.SignHash(digest)
	if err != nil {
		return nil, err
	}
	return &PermitRequest{
		Owner:     w.Address(),
		Spender:   spender,
		Value:     new(uint256.Int).Set(value),
		Deadline:  deadline,
		Signature: sig,
	}, nil
}

// Permit 提交链下签名授权；任何人都可以代为提交
func (l *Ledger) Permit(req *PermitRequest) error {
	// 1. 参数验证
	if req == nil || req.Value == nil {
		return types.Errorf(types.ErrorCodeInvalidSignature, "permit request is incomplete")
	}
	now := l.clock.Now()
	if now.After(req.Deadline) {
		return types.NewError(types.ErrorCodePermitExpired, "", map[string]interface{}{
			"deadline": req.Deadline.UTC().Format(time.RFC3339),
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// 2. 恢复签名者
	nonce := l.nonces[req.Owner]
	digest := l.PermitDigest(req.Owner, req.Spender, req.Value, nonce, req.Deadline)
	signer, err := wallet.RecoverAddress(digest, req.Signature)
	if err != nil {
		return types.Wrap(types.ErrorCodeInvalidSignature, err, nil)
	}
	if signer != req.Owner {
		return types.NewError(types.ErrorCodeInvalidSignature, "signer does not match owner", map[string]interface{}{
			"owner":  utils.AddressToBase58(req.Owner),
			"signer": utils.AddressToBase58(signer),
		})
	}

	// 3. 写入授权并消耗 nonce
	if err := l.approveLocked(req.Owner, req.Spender, req.Value); err != nil {
		return err
	}
	l.nonces[req.Owner] = nonce + 1
	return nil
}
