package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

func HMACSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func HMACSHA256Hex(key []byte, msg string) string {
	return hex.EncodeToString(HMACSHA256(key, msg))
}

// EqualHex compares two hex digests in constant time.
func EqualHex(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
