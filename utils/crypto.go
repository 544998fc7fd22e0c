package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// CalculateHMAC вычисляет HMAC-подпись данных
func CalculateHMAC(data string, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyHMAC проверяет HMAC-подпись данных
func VerifyHMAC(data, signature, key string) bool {
	expected := CalculateHMAC(data, key)
	return hmac.Equal([]byte(expected), []byte(signature))
}
