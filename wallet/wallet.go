package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// SignatureLength 可恢复签名长度：r || s || v
const SignatureLength = 65

// Wallet 钱包接口
type Wallet interface {
	// Address 获取钱包地址
	Address() common.Address

	// SignHash 签名 32 字节哈希，返回 65 字节可恢复签名
	SignHash(hash []byte) ([]byte, error)

	// SignMessage 签名消息（先做 SHA256）
	SignMessage(msg []byte) ([]byte, error)

	// PrivateKey 获取私钥（谨慎使用）
	PrivateKey() *ecdsa.PrivateKey
}

// SimpleWallet 简单钱包实现（用于测试和开发）
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWallet 创建新钱包
func NewWallet() (Wallet, error) {
	// 生成 secp256k1 私钥
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		address:    AddressFromPublicKey(&privateKey.PublicKey),
	}, nil
}

// NewWalletFromPrivateKey 从十六进制私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (Wallet, error) {
	privateKeyBytes, err := hex.DecodeString(hexRemovePrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(privateKeyBytes))
	}

	privateKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		address:    AddressFromPublicKey(&privateKey.PublicKey),
	}, nil
}

// Address 获取钱包地址
func (w *SimpleWallet) Address() common.Address {
	return w.address
}

// SignHash 签名哈希值
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("secp256k1 sign: %w", err)
	}
	return sig, nil
}

// SignMessage 签名消息
func (w *SimpleWallet) SignMessage(msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)
	return w.SignHash(hash[:])
}

// PrivateKey 获取私钥
func (w *SimpleWallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}

// AddressFromPublicKey 从公钥派生地址
// 使用 secp256k1 公钥的 HASH160(compressed_pubkey) 作为 20 字节地址
func AddressFromPublicKey(pub *ecdsa.PublicKey) common.Address {
	compressed := ethcrypto.CompressPubkey(pub)

	sha := sha256.Sum256(compressed)
	r := ripemd160.New()
	_, _ = r.Write(sha[:])
	return common.BytesToAddress(r.Sum(nil))
}

// RecoverAddress 从哈希与 65 字节签名恢复签名者地址
func RecoverAddress(hash []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(sig))
	}
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return AddressFromPublicKey(pub), nil
}

// hexRemovePrefix 移除十六进制字符串的0x前缀
func hexRemovePrefix(hexStr string) string {
	if len(hexStr) >= 2 && hexStr[:2] == "0x" {
		return hexStr[2:]
	}
	return hexStr
}
