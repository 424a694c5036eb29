// Package matcher finds every occurrence of fixed-length token patterns in a
// token sequence. It performs no disambiguation: overlapping matches from
// different patterns are all reported and callers decide which ones win.
//
// Patterns and predicates are immutable once built, so a single pattern table
// may be shared by any number of goroutines.
package matcher

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"OpenMCP-Intent/internal/nlp/tokenizer"
)

// Predicate 判断单个 token 是否满足条件。
type Predicate func(tok tokenizer.Token) bool

// Pattern 是一个具名、定长的谓词序列。
type Pattern struct {
	Name  string
	Steps []Predicate
}

// Len 返回模式覆盖的 token 数量。
func (p Pattern) Len() int { return len(p.Steps) }

// Match 表示某个模式在 [Start, End) 区间命中。
type Match struct {
	Pattern string
	Start   int
	End     int
	order   int
}

// Find 对每个模式扫描所有起点，返回全部命中结果。
// 结果按起点升序排列，起点相同时保持模式在表中的顺序。
func Find(patterns []Pattern, tokens []tokenizer.Token) []Match {
	var matches []Match
	for order, pattern := range patterns {
		width := pattern.Len()
		if width == 0 || width > len(tokens) {
			continue
		}
		for start := 0; start+width <= len(tokens); start++ {
			if matchAt(pattern, tokens[start:start+width]) {
				matches = append(matches, Match{Pattern: pattern.Name, Start: start, End: start + width, order: order})
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].order < matches[j].order
	})
	return matches
}

func matchAt(pattern Pattern, window []tokenizer.Token) bool {
	for i, step := range pattern.Steps {
		if !step(window[i]) {
			return false
		}
	}
	return true
}

// LowerIn 匹配小写文本属于给定集合的 token。
func LowerIn(words ...string) Predicate {
	set := toSet(words, strings.ToLower)
	return func(tok tokenizer.Token) bool {
		_, ok := set[tok.Lower]
		return ok
	}
}

// TextIn 按原文大小写精确匹配。
func TextIn(words ...string) Predicate {
	set := toSet(words, nil)
	return func(tok tokenizer.Token) bool {
		_, ok := set[tok.Text]
		return ok
	}
}

// TextNotIn 要求原文不在给定集合中。
func TextNotIn(words ...string) Predicate {
	in := TextIn(words...)
	return func(tok tokenizer.Token) bool { return !in(tok) }
}

// IsAlpha 要求 token 全部由字母组成。
func IsAlpha() Predicate {
	return func(tok tokenizer.Token) bool { return tok.IsAlpha }
}

// Capitalized 要求首字母为大写。
func Capitalized() Predicate {
	return func(tok tokenizer.Token) bool {
		r, _ := utf8.DecodeRuneInString(tok.Text)
		return r != utf8.RuneError && unicode.IsUpper(r)
	}
}

var numericLiteral = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Numeric 匹配非负整数或小数字面量，不支持符号、科学计数法与千分位。
func Numeric() Predicate {
	return func(tok tokenizer.Token) bool { return numericLiteral.MatchString(tok.Lower) }
}

// Func 将任意文本判断函数包装为谓词。
func Func(fn func(text string) bool) Predicate {
	return func(tok tokenizer.Token) bool { return fn(tok.Text) }
}

// All 组合多个谓词，全部满足才算命中。
func All(preds ...Predicate) Predicate {
	return func(tok tokenizer.Token) bool {
		for _, pred := range preds {
			if !pred(tok) {
				return false
			}
		}
		return true
	}
}

func toSet(words []string, fold func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if fold != nil {
			w = fold(w)
		}
		set[w] = struct{}{}
	}
	return set
}
