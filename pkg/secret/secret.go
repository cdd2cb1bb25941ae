// Package secret 使用 NaCl secretbox 加密落库的敏感字段（如 AI provider 的 API Key）。
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/nacl/secretbox"
)

// 密文前缀，用于区分历史明文数据
const prefix = "enc:v1:"

const nonceSize = 24

// ErrDecrypt 表示密文无法用当前密钥解开。
var ErrDecrypt = errors.New("secret: decryption failed")

// Box 持有由 secret_key 派生的对称密钥。
type Box struct {
	key [32]byte
}

// New 以 sha256(secretKey) 作为 secretbox 密钥。
func New(secretKey string) *Box {
	return &Box{key: sha256.Sum256([]byte(secretKey))}
}

// Seal 加密 plaintext；空字符串原样返回。
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open 解密 Seal 的输出；不带密文前缀的值视为明文原样返回。
func (b *Box) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsSealed 判断 value 是否为 Seal 的输出。
func IsSealed(value string) bool {
	return strings.HasPrefix(value, prefix)
}

// Mask 返回适合展示的掩码形式，只保留首尾各 4 个字符。
func Mask(value string) string {
	if value == "" {
		return ""
	}
	n := utf8.RuneCountInString(value)
	if n <= 8 {
		return strings.Repeat("*", n)
	}
	r := []rune(value)
	return string(r[:4]) + strings.Repeat("*", n-8) + string(r[n-4:])
}
