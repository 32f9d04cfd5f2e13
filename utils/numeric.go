package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// Tolerance 数值比较容差
const Tolerance = 1e-8

// FloatEquals 在容差范围内比较两个浮点数
func FloatEquals(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// SHA256Hex 计算字符串的 SHA-256 十六进制摘要
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256HexBytes 计算字节数组的 SHA-256 十六进制摘要
func SHA256HexBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
