package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddress 判断文本是否为小写 0x 前缀的 40 位十六进制地址，不校验 EIP-55 大小写。
func IsAddress(text string) bool {
	if !strings.HasPrefix(text, "0x") {
		return false
	}
	return common.IsHexAddress(text)
}

// NormalizeAddress 返回地址的 EIP-55 校验和形式，非地址文本原样返回。
func NormalizeAddress(text string) string {
	if !IsAddress(text) {
		return text
	}
	return common.HexToAddress(text).Hex()
}
