package intent

import (
	"OpenMCP-Intent/internal/nlp/tokenizer"
)

// Options 配置解析器，零值使用默认分词器与默认模式表。
type Options struct {
	Tokenizer tokenizer.Tokenizer
	Table     *Table
}

// Parser 将自然语言指令解析为结构化意图。
type Parser struct {
	tokenizer tokenizer.Tokenizer
	table     *Table
}

// New 创建解析器。
func New(opts Options) *Parser {
	tk := opts.Tokenizer
	if tk == nil {
		tk = tokenizer.NewSimple()
	}
	table := opts.Table
	if table == nil {
		table = DefaultTable()
	}
	return &Parser{tokenizer: tk, table: table}
}

// Table 返回解析器使用的模式表。
func (p *Parser) Table() *Table { return p.table }

// ClauseReport 记录单个子句的解析过程，便于排查规则命中情况。
type ClauseReport struct {
	Clause   Clause
	Text     string
	Params   Params
	Admitted bool
}

// Analysis 是一次解析的完整中间结果。
type Analysis struct {
	Tokens  []tokenizer.Token
	Clauses []ClauseReport
	Result  Result
}

// Parse 解析文本。未识别到意图不是错误，返回 KindNone 结果。
func (p *Parser) Parse(text string) (Result, error) {
	analysis, err := p.Analyze(text)
	if err != nil {
		return Result{}, err
	}
	return analysis.Result, nil
}

// Analyze 与 Parse 相同，但额外返回分词与各子句的中间结果。
func (p *Parser) Analyze(text string) (Analysis, error) {
	tokens, err := p.tokenizer.Tokenize(text)
	if err != nil {
		return Analysis{}, err
	}

	clauses := Clauses(p.table.FindIntents(tokens), len(tokens))
	reports := make([]ClauseReport, 0, len(clauses))
	admitted := make([]Intent, 0, len(clauses))
	for _, clause := range clauses {
		span := tokens[clause.Start:clause.End]
		params := Normalize(clause.Label, p.table.ExtractClause(clause.Label, span))
		ok := Admitted(clause.Label, params)
		reports = append(reports, ClauseReport{Clause: clause, Text: spanText(span), Params: params, Admitted: ok})
		if ok {
			admitted = append(admitted, Intent{Label: clause.Label, Params: params})
		}
	}

	return Analysis{Tokens: tokens, Clauses: reports, Result: Aggregate(admitted)}, nil
}
