package intent

import (
	"strings"

	"OpenMCP-Intent/internal/nlp/matcher"
	"OpenMCP-Intent/internal/nlp/tokenizer"
)

// ExtractClause 在子句范围内重新匹配槽位模式并组装参数集合。
// 命中按起点升序处理，同一字段的冲突以最后写入为准。
func (t *Table) ExtractClause(label Label, tokens []tokenizer.Token) Params {
	params := DefaultParams()
	matches := matcher.Find(t.slots, tokens)

	// 先统计数量对与 TOKEN2 占用的位置，裸代币的取舍不依赖遍历顺序。
	consumed := make(map[int]struct{})
	paired := make(map[string]struct{})
	for _, m := range matches {
		switch m.Pattern {
		case SlotAmount:
			consumed[m.Start+1] = struct{}{}
			paired[tokens[m.Start+1].Text] = struct{}{}
		case SlotToken2:
			consumed[m.Start+1] = struct{}{}
		}
	}

	seenPairs := make(map[[2]string]struct{})
	seenBare := make(map[string]struct{})
	for _, m := range matches {
		switch m.Pattern {
		case SlotAmount:
			amount, symbol := tokens[m.Start].Text, tokens[m.Start+1].Text
			key := [2]string{amount, symbol}
			if _, dup := seenPairs[key]; dup {
				continue
			}
			seenPairs[key] = struct{}{}
			params.Tokens = append(params.Tokens, TokenAmount{Amount: strPtr(amount), Token: symbol})
		case SlotToken:
			symbol := tokens[m.Start].Text
			if _, ok := consumed[m.Start]; ok {
				continue
			}
			if _, ok := paired[symbol]; ok {
				continue
			}
			if _, dup := seenBare[symbol]; dup {
				continue
			}
			seenBare[symbol] = struct{}{}
			params.Tokens = append(params.Tokens, TokenAmount{Token: symbol})
		case SlotRecipient:
			if label.acceptsRecipient() {
				params.To = strPtr(spanText(tokens[m.Start+1 : m.End]))
			}
		case SlotAddress:
			if label.acceptsRecipient() {
				params.To = strPtr(tokens[m.Start+1].Text)
			}
		case SlotSourceNetwork:
			params.SourceNetwork = strPtr(tokens[m.Start+1].Text)
		case SlotDestNetwork:
			params.DestNetwork = strPtr(tokens[m.Start+1].Text)
		case SlotToken2:
			params.Token2 = strPtr(tokens[m.Start+1].Text)
		case SlotQueryType:
			params.QueryType = strPtr(tokens[m.Start].Text)
		}
	}
	return params
}

func spanText(tokens []tokenizer.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, tok.Text)
	}
	return strings.Join(parts, " ")
}
