package intent

// Normalize 按意图类别补全隐含字段，返回新的参数集合。
func Normalize(label Label, params Params) Params {
	out := params.clone()
	switch label {
	case LabelSwap:
		out.To = strPtr(DefaultFrom)
		mirrorNetwork(&out)
	case LabelBridge:
		// 跨链需要两端网络都在文本中出现，缺失的一端保持为空。
		out.To = strPtr(DefaultFrom)
	case LabelTransfer, LabelQuery:
		mirrorNetwork(&out)
	}
	return out
}

func mirrorNetwork(p *Params) {
	switch {
	case p.SourceNetwork != nil && p.DestNetwork == nil:
		p.DestNetwork = strPtr(*p.SourceNetwork)
	case p.DestNetwork != nil && p.SourceNetwork == nil:
		p.SourceNetwork = strPtr(*p.DestNetwork)
	}
}

// Admitted 判断子句是否携带足够信息以输出结果。
func Admitted(label Label, params Params) bool {
	switch label {
	case LabelTransfer, LabelQuery:
		return len(params.Tokens) > 0 || params.To != nil || params.QueryType != nil
	case LabelSwap, LabelBridge:
		return len(params.Tokens) > 0
	default:
		return false
	}
}
