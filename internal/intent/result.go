package intent

import "encoding/json"

// Kind 描述聚合结果的终态。
type Kind int

const (
	KindNone Kind = iota
	KindSingle
	KindMulti
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindMulti:
		return "multi"
	default:
		return "none"
	}
}

// Intent 是单个已采纳子句的解析结果。
type Intent struct {
	Label  Label  `json:"intent"`
	Params Params `json:"parameters"`
}

// Result 是解析的最终输出，按采纳子句数量区分为无意图、单意图与多意图三种形态。
type Result struct {
	intents []Intent
}

// Aggregate 将已采纳的子句结果聚合为最终结果，保持子句顺序。
func Aggregate(intents []Intent) Result {
	if len(intents) == 0 {
		return Result{}
	}
	return Result{intents: append([]Intent(nil), intents...)}
}

// Kind 返回结果形态。
func (r Result) Kind() Kind {
	switch len(r.intents) {
	case 0:
		return KindNone
	case 1:
		return KindSingle
	default:
		return KindMulti
	}
}

// Label 返回顶层意图；无意图时第二个返回值为 false。
func (r Result) Label() (Label, bool) {
	switch r.Kind() {
	case KindSingle:
		return r.intents[0].Label, true
	case KindMulti:
		return LabelMulti, true
	default:
		return "", false
	}
}

// Intents 展开为子句结果列表，无意图时返回空切片。
func (r Result) Intents() []Intent {
	return append([]Intent{}, r.intents...)
}

// IntentCount 多意图时为子句数量，其余情况为 1。
func (r Result) IntentCount() int {
	if r.Kind() == KindMulti {
		return len(r.intents)
	}
	return 1
}

type multiParams struct {
	IntentCount int      `json:"intent_count"`
	Intents     []Intent `json:"intents"`
}

type envelope struct {
	Intent     *Label `json:"intent"`
	Parameters any    `json:"parameters"`
}

// Envelope 返回与 JSON 输出一致的 intent 与 parameters 两部分。
func (r Result) Envelope() (*Label, any) {
	switch r.Kind() {
	case KindSingle:
		label := r.intents[0].Label
		return &label, r.intents[0].Params
	case KindMulti:
		label := LabelMulti
		return &label, multiParams{IntentCount: len(r.intents), Intents: r.intents}
	default:
		return nil, DefaultParams()
	}
}

// MarshalJSON 输出 {"intent": ..., "parameters": ...}。
func (r Result) MarshalJSON() ([]byte, error) {
	label, params := r.Envelope()
	return json.Marshal(envelope{Intent: label, Parameters: params})
}
