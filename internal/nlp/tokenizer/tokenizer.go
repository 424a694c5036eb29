// Package tokenizer turns raw command text into an ordered, immutable token
// sequence. The parser treats it as a black box: any implementation of
// Tokenizer that yields stable offsets and case-folded text can be plugged in.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	xerrors "OpenMCP-Intent/internal/errors"
)

// Token 是分词结果中的最小单元，创建后不再修改。
type Token struct {
	// Text 为原文片段。
	Text string
	// Lower 为小写归一化后的文本。
	Lower string
	// Start/End 为字符（rune）偏移，区间左闭右开。
	Start int
	End   int
	// Index 为该 token 在序列中的位置。
	Index int
	// IsAlpha 表示文本是否全部由字母组成。
	IsAlpha bool
}

// Tokenizer 定义分词器能力。
type Tokenizer interface {
	Tokenize(text string) ([]Token, error)
}

// tokenPattern 依次匹配十六进制字面量、数字、单词以及单个标点。
var tokenPattern = regexp.MustCompile(`0[xX][0-9a-fA-F]+|\d+(?:\.\d+)?|[\p{L}_][\p{L}\p{N}_]*|\S`)

// Simple 是默认的规则分词器，适用于 ASCII 指令词、数字与十六进制地址。
type Simple struct{}

// NewSimple 创建默认分词器。
func NewSimple() Simple { return Simple{} }

// Tokenize 实现 Tokenizer 接口。非法 UTF-8 文本返回 MALFORMED_INPUT。
func (Simple) Tokenize(text string) ([]Token, error) {
	if !utf8.ValidString(text) {
		return nil, xerrors.New(xerrors.CodeMalformedInput, "输入文本不是合法的 UTF-8 编码")
	}

	locs := tokenPattern.FindAllStringIndex(text, -1)
	tokens := make([]Token, 0, len(locs))

	// 字节偏移转换为字符偏移，增量计算避免重复扫描。
	runePos, bytePos := 0, 0
	for _, loc := range locs {
		runePos += utf8.RuneCountInString(text[bytePos:loc[0]])
		raw := text[loc[0]:loc[1]]
		width := utf8.RuneCountInString(raw)
		tokens = append(tokens, Token{
			Text:    raw,
			Lower:   strings.ToLower(raw),
			Start:   runePos,
			End:     runePos + width,
			Index:   len(tokens),
			IsAlpha: isAlpha(raw),
		})
		runePos += width
		bytePos = loc[1]
	}
	return tokens, nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var _ Tokenizer = Simple{}
