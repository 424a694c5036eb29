package intent

import "encoding/json"

// DefaultFrom 是所有子句的发起方常量。
const DefaultFrom = "User"

// TokenAmount 记录一次代币提及，Amount 为空表示文本中未给出数量。
type TokenAmount struct {
	Amount *string `json:"amount"`
	Token  string  `json:"token"`
}

// Params 是单个子句的参数集合，可选字段为 nil 时序列化为 null。
type Params struct {
	From          string        `json:"from"`
	To            *string       `json:"to"`
	SourceNetwork *string       `json:"source_network"`
	DestNetwork   *string       `json:"dest_network"`
	Tokens        []TokenAmount `json:"tokens"`
	Token2        *string       `json:"token2"`
	QueryType     *string       `json:"query_type"`
}

// DefaultParams 返回空参数集合。
func DefaultParams() Params {
	return Params{From: DefaultFrom, Tokens: []TokenAmount{}}
}

// MarshalJSON 保证 tokens 始终输出为数组。
func (p Params) MarshalJSON() ([]byte, error) {
	type plain Params
	out := plain(p)
	if out.Tokens == nil {
		out.Tokens = []TokenAmount{}
	}
	return json.Marshal(out)
}

func (p Params) clone() Params {
	out := p
	out.Tokens = append([]TokenAmount{}, p.Tokens...)
	return out
}

func strPtr(s string) *string { return &s }

// SlotValues 按槽位标签列出参数中出现的取值，RECIPIENT 与 ADDRESS 都对应 to 字段。
func (p Params) SlotValues() map[string][]string {
	values := make(map[string][]string)
	add := func(label string, v *string) {
		if v != nil && *v != "" {
			values[label] = append(values[label], *v)
		}
	}
	for _, tok := range p.Tokens {
		add(SlotAmount, tok.Amount)
		add(SlotToken, strPtr(tok.Token))
	}
	add(SlotToken2, p.Token2)
	add(SlotRecipient, p.To)
	add(SlotAddress, p.To)
	add(SlotSourceNetwork, p.SourceNetwork)
	add(SlotDestNetwork, p.DestNetwork)
	add(SlotQueryType, p.QueryType)
	return values
}
