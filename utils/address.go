package utils

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

// AddressVersion Base58Check 地址版本字节（P2PKH）
const AddressVersion byte = 0x1C

// AddressToBase58 将 20 字节地址转换为 Base58Check 编码
//
// **格式**：
// - 版本字节（1字节）+ 地址哈希（20字节）+ 校验和（4字节）
// - 校验和为双重 SHA256 的前 4 字节
func AddressToBase58(addr common.Address) string {
	versioned := append([]byte{AddressVersion}, addr.Bytes()...)
	return base58.Encode(append(versioned, checksum(versioned)...))
}

// AddressBase58ToAddress 将 Base58Check 编码地址解码为 20 字节地址
func AddressBase58ToAddress(base58Addr string) (common.Address, error) {
	decoded := base58.Decode(base58Addr)

	// 版本字节（1）+ 地址哈希（20）+ 校验和（4）= 25 字节
	if len(decoded) != 25 {
		return common.Address{}, fmt.Errorf("invalid address length: expected 25 bytes after Base58 decode, got %d", len(decoded))
	}

	versioned := decoded[:21]
	if !bytes.Equal(decoded[21:], checksum(versioned)) {
		return common.Address{}, fmt.Errorf("invalid checksum")
	}
	if versioned[0] != AddressVersion {
		return common.Address{}, fmt.Errorf("unexpected address version 0x%02x", versioned[0])
	}

	return common.BytesToAddress(versioned[1:]), nil
}

// ParseAddress 解析地址字符串
//
// 支持两种格式：
// - 0x 前缀十六进制（40 个字符）
// - Base58Check
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, fmt.Errorf("address is empty")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("invalid hex address: %s", s)
		}
		return common.HexToAddress(s), nil
	}
	return AddressBase58ToAddress(s)
}

// ShortAddress 日志用的短地址
func ShortAddress(addr common.Address) string {
	s := AddressToBase58(addr)
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

func checksum(versioned []byte) []byte {
	hash1 := sha256.Sum256(versioned)
	hash2 := sha256.Sum256(hash1[:])
	return hash2[:4]
}
