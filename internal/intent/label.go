package intent

// Label 表示意图类别。
type Label string

const (
	LabelTransfer Label = "Transfer"
	LabelSwap     Label = "Swap"
	LabelBridge   Label = "Bridge"
	LabelQuery    Label = "Query"
	// LabelMulti 仅出现在聚合结果中，不对应任何子句。
	LabelMulti Label = "Multi"
)

// Valid 判断是否为已知类别。
func (l Label) Valid() bool {
	switch l {
	case LabelTransfer, LabelSwap, LabelBridge, LabelQuery, LabelMulti:
		return true
	default:
		return false
	}
}

// acceptsRecipient 标记哪些意图会从文本中提取收款人或地址。
func (l Label) acceptsRecipient() bool {
	return l == LabelTransfer || l == LabelQuery
}

// 意图关键词，按小写比较。
var (
	transferKeywords = []string{"send", "transfer", "move"}
	swapKeywords     = []string{"swap"}
	bridgeKeywords   = []string{"bridge"}
	bridgePrefixes   = []string{"via", "through"}
	queryKeywords    = []string{"check", "get", "query", "show"}
)
