package utils

import (
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

func TestAddressToBase58_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		addr common.Address
	}{
		{name: "all zeros", addr: common.Address{}},
		{name: "sequential", addr: common.BytesToAddress([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})},
		{name: "max bytes", addr: common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := AddressToBase58(tt.addr)
			if encoded == "" {
				t.Fatal("AddressToBase58() result is empty")
			}
			decoded, err := AddressBase58ToAddress(encoded)
			if err != nil {
				t.Fatalf("AddressBase58ToAddress() error = %v", err)
			}
			if decoded != tt.addr {
				t.Errorf("round trip = %x, want %x", decoded, tt.addr)
			}
		})
	}
}

func TestAddressBase58ToAddress_Invalid(t *testing.T) {
	valid := AddressToBase58(common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314"))

	// 篡改校验和
	raw := base58.Decode(valid)
	raw[len(raw)-1] ^= 0xFF
	badChecksum := base58.Encode(raw)

	// 错误版本字节（校验和正确）
	wrongVersion := append([]byte{0x00}, raw[1:21]...)
	wrongVersion = append(wrongVersion, checksum(wrongVersion)...)

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "invalid characters", input: "0OIl"},
		{name: "bad checksum", input: badChecksum},
		{name: "wrong version", input: base58.Encode(wrongVersion)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AddressBase58ToAddress(tt.input); err == nil {
				t.Errorf("AddressBase58ToAddress(%q) expected error", tt.input)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name    string
		input   string
		want    common.Address
		wantErr bool
	}{
		{name: "hex", input: "0x00000000000000000000000000000000000000aa", want: addr},
		{name: "hex with spaces", input: "  0x00000000000000000000000000000000000000aa ", want: addr},
		{name: "base58", input: AddressToBase58(addr), want: addr},
		{name: "short hex", input: "0xaa", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not-an-address", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAddress() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestShortAddress(t *testing.T) {
	s := ShortAddress(common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314"))
	if len([]rune(s)) != 11 {
		t.Errorf("ShortAddress() = %q, want 11 runes", s)
	}
}
