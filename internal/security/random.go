package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const verificationTokenBytes = 32

// RandomToken генерирует случайную hex-строку из size байт
func RandomToken(size int) (string, error) {
	buffer := make([]byte, size)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("ошибка генерации: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// NewVerificationToken возвращает код подтверждения, который отдается клиенту, и его хэш для хранения в БД
func NewVerificationToken() (string, string, error) {
	token, err := RandomToken(verificationTokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, HashToken(token), nil
}

// HashToken sha256 от значения токена. Токены длинные и случайные, поэтому соль не нужна
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
