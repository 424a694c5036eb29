package intent

import (
	"OpenMCP-Intent/internal/nlp/matcher"
	"OpenMCP-Intent/internal/nlp/tokenizer"
)

// Occurrence 标记意图关键词在全文中的位置。
type Occurrence struct {
	Label Label
	Start int
	End   int
}

// Clause 是归属于某个意图的 token 区间 [Start, End)。
type Clause struct {
	Label Label
	Start int
	End   int
}

// FindIntents 返回按位置排序的意图出现列表。
// 重叠的关键词命中（例如 "via bridge" 与其中的 "bridge"）只保留起点最早的一个。
func (t *Table) FindIntents(tokens []tokenizer.Token) []Occurrence {
	var (
		occurrences []Occurrence
		coveredTo   int
	)
	for _, m := range matcher.Find(t.intents, tokens) {
		if len(occurrences) > 0 && m.Start < coveredTo {
			continue
		}
		occurrences = append(occurrences, Occurrence{Label: Label(m.Pattern), Start: m.Start, End: m.End})
		coveredTo = m.End
	}
	return occurrences
}

// Clauses 按下一个关键词位置切分子句，首个关键词之前的 token 不归属任何子句。
func Clauses(occurrences []Occurrence, tokenCount int) []Clause {
	clauses := make([]Clause, 0, len(occurrences))
	for i, occ := range occurrences {
		end := tokenCount
		if i+1 < len(occurrences) {
			end = occurrences[i+1].Start
		}
		clauses = append(clauses, Clause{Label: occ.Label, Start: occ.Start, End: end})
	}
	return clauses
}
