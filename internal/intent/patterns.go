package intent

import (
	"sync"

	"OpenMCP-Intent/internal/chain"
	"OpenMCP-Intent/internal/nlp/matcher"
)

// 槽位模式名称，同时也是训练语料中的实体标签。
const (
	SlotAmount        = "AMOUNT"
	SlotToken         = "TOKEN"
	SlotToken2        = "TOKEN2"
	SlotRecipient     = "RECIPIENT"
	SlotAddress       = "ADDRESS"
	SlotSourceNetwork = "SOURCE_NETWORK"
	SlotDestNetwork   = "DEST_NETWORK"
	SlotQueryType     = "QUERY_TYPE"
)

// SlotLabels 返回全部槽位标签。
func SlotLabels() []string {
	return []string{SlotAmount, SlotToken, SlotToken2, SlotRecipient, SlotAddress, SlotSourceNetwork, SlotDestNetwork, SlotQueryType}
}

// Vocabulary 是模式表依赖的词表，按原文大小写匹配。
type Vocabulary struct {
	Symbols  []string
	Networks []string
}

// VocabularyFromCatalog 从网络目录构造词表。
func VocabularyFromCatalog(c chain.Catalog) Vocabulary {
	return Vocabulary{Symbols: c.Symbols(), Networks: c.NetworkNames()}
}

// DefaultVocabulary 返回内置目录对应的词表。
func DefaultVocabulary() Vocabulary {
	return VocabularyFromCatalog(chain.Default())
}

// Table 是进程级只读的模式表，构建后不再修改。
type Table struct {
	vocab   Vocabulary
	intents []matcher.Pattern
	slots   []matcher.Pattern
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable 惰性构建基于默认词表的模式表。
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = NewTable(DefaultVocabulary())
	})
	return defaultTable
}

// NewTable 根据词表构建模式表。
func NewTable(vocab Vocabulary) *Table {
	symbol := matcher.TextIn(vocab.Symbols...)
	network := matcher.TextIn(vocab.Networks...)
	qualifier := matcher.LowerIn("mainnet", "testnet")
	recipientPrep := matcher.LowerIn("to", "for")

	excluded := append(append([]string{"on", "from"}, vocab.Symbols...), vocab.Networks...)
	recipient := matcher.All(matcher.IsAlpha(), matcher.Capitalized(), matcher.TextNotIn(excluded...))

	t := &Table{vocab: vocab}

	// 可选步骤展开为定长变体，带前缀的变体排在前面以便重叠时保留更早的起点。
	t.addIntent(LabelTransfer, []matcher.Predicate{matcher.LowerIn(transferKeywords...)})
	t.addIntent(LabelSwap, []matcher.Predicate{matcher.LowerIn(swapKeywords...)})
	t.addIntent(LabelBridge, []matcher.Predicate{matcher.LowerIn(bridgePrefixes...), matcher.LowerIn(bridgeKeywords...)})
	t.addIntent(LabelBridge, []matcher.Predicate{matcher.LowerIn(bridgeKeywords...)})
	t.addIntent(LabelQuery, []matcher.Predicate{matcher.LowerIn(queryKeywords...)})

	t.slots = []matcher.Pattern{
		{Name: SlotAmount, Steps: []matcher.Predicate{matcher.Numeric(), symbol}},
		{Name: SlotToken, Steps: []matcher.Predicate{symbol}},
		{Name: SlotRecipient, Steps: []matcher.Predicate{recipientPrep, recipient}},
		{Name: SlotAddress, Steps: []matcher.Predicate{recipientPrep, matcher.Func(chain.IsAddress)}},
		{Name: SlotSourceNetwork, Steps: []matcher.Predicate{matcher.LowerIn("from", "on"), network, qualifier}},
		{Name: SlotSourceNetwork, Steps: []matcher.Predicate{matcher.LowerIn("from", "on"), network}},
		{Name: SlotDestNetwork, Steps: []matcher.Predicate{matcher.LowerIn("on", "to"), network, qualifier}},
		{Name: SlotDestNetwork, Steps: []matcher.Predicate{matcher.LowerIn("on", "to"), network}},
		{Name: SlotToken2, Steps: []matcher.Predicate{matcher.LowerIn("for", "to"), symbol}},
		{Name: SlotQueryType, Steps: []matcher.Predicate{matcher.LowerIn("balance", "amount")}},
	}
	return t
}

func (t *Table) addIntent(label Label, steps []matcher.Predicate) {
	t.intents = append(t.intents, matcher.Pattern{Name: string(label), Steps: steps})
}

// Vocabulary 返回构建该表所用的词表。
func (t *Table) Vocabulary() Vocabulary {
	return Vocabulary{
		Symbols:  append([]string(nil), t.vocab.Symbols...),
		Networks: append([]string(nil), t.vocab.Networks...),
	}
}
