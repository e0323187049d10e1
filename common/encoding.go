package common

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// EncodeBytesToBase58 encodes bytes directly to base58
func EncodeBytesToBase58(bytes []byte) string {
	return base58.Encode(bytes)
}

// DecodeBase58ToBytes decodes base58 string to bytes
func DecodeBase58ToBytes(base58Str string) ([]byte, error) {
	bytes, err := base58.Decode(base58Str)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 string: %w", err)
	}
	if len(bytes) == 0 {
		return nil, fmt.Errorf("failed to decode base58 string")
	}
	return bytes, nil
}

// IsValidBase58 checks if a string is valid base58
func IsValidBase58(str string) bool {
	decoded, err := base58.Decode(str)
	return err == nil && len(decoded) > 0
}

// DecodeHexOrBase58 accepts a 0x-optional hex string first and falls back to base58.
func DecodeHexOrBase58(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty input")
	}
	h := strings.TrimPrefix(s, "0x")
	if len(h)%2 == 0 {
		if b, err := hex.DecodeString(h); err == nil {
			return b, nil
		}
	}
	return DecodeBase58ToBytes(s)
}

// StringToHex encodes an ASCII string the way star stories are persisted.
func StringToHex(s string) string {
	return hex.EncodeToString([]byte(s))
}

// HexToString reverses StringToHex. Invalid input yields an error.
func HexToString(h string) (string, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex string: %w", err)
	}
	return string(b), nil
}
