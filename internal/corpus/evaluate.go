package corpus

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"OpenMCP-Intent/internal/intent"
)

// Parser 是评估所需的解析能力。
type Parser interface {
	Parse(text string) (intent.Result, error)
}

// SlotStat 统计某一槽位标签的召回情况。
type SlotStat struct {
	Expected int     `json:"expected"`
	Found    int     `json:"found"`
	Recall   float64 `json:"recall"`
}

// Mismatch 记录意图判断与标注不一致的样本。
type Mismatch struct {
	ID       string `json:"id,omitempty"`
	Prompt   string `json:"prompt"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// Report 是一次语料回放的汇总结果。
type Report struct {
	Total          int                 `json:"total"`
	IntentCorrect  int                 `json:"intent_correct"`
	IntentAccuracy float64             `json:"intent_accuracy"`
	ParseErrors    int                 `json:"parse_errors"`
	Slots          map[string]SlotStat `json:"slots"`
	Mismatches     []Mismatch          `json:"mismatches"`
}

type outcome struct {
	parsed   bool
	correct  bool
	got      string
	expected string
	slots    map[string][2]int
}

// Evaluate 将已标注语料并发回放给解析器，统计意图准确率与各槽位召回率。
// 未标注的记录会被跳过；单条记录解析失败计入 ParseErrors，不中断评估。
func Evaluate(ctx context.Context, parser Parser, records []Record, workers int) (Report, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	annotated := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Annotated() {
			annotated = append(annotated, r)
		}
	}

	outcomes := make([]outcome, len(annotated))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, record := range annotated {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = evaluateRecord(parser, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	// 预置全部槽位，未出现在标注中的标签也会以 0 计数出现在报告里。
	report := Report{Total: len(annotated), Slots: map[string]SlotStat{}, Mismatches: []Mismatch{}}
	for _, label := range intent.SlotLabels() {
		report.Slots[label] = SlotStat{}
	}
	for i, o := range outcomes {
		if !o.parsed {
			report.ParseErrors++
		}
		if o.correct {
			report.IntentCorrect++
		} else {
			report.Mismatches = append(report.Mismatches, Mismatch{
				ID:       annotated[i].ID,
				Prompt:   annotated[i].Prompt,
				Expected: o.expected,
				Got:      o.got,
			})
		}
		for label, counts := range o.slots {
			stat := report.Slots[label]
			stat.Expected += counts[0]
			stat.Found += counts[1]
			report.Slots[label] = stat
		}
	}
	if report.Total > 0 {
		report.IntentAccuracy = float64(report.IntentCorrect) / float64(report.Total)
	}
	for label, stat := range report.Slots {
		if stat.Expected > 0 {
			stat.Recall = float64(stat.Found) / float64(stat.Expected)
		}
		report.Slots[label] = stat
	}
	return report, nil
}

func evaluateRecord(parser Parser, record Record) outcome {
	o := outcome{expected: labelText(record.Intent), slots: map[string][2]int{}}
	result, err := parser.Parse(record.Prompt)
	if err != nil {
		o.got = "error"
		for _, e := range record.Entities {
			counts := o.slots[e.Label]
			counts[0]++
			o.slots[e.Label] = counts
		}
		return o
	}
	o.parsed = true
	if label, ok := result.Label(); ok {
		o.got = string(label)
	}
	o.correct = o.got == o.expected

	values := make(map[string][]string)
	for _, it := range result.Intents() {
		for label, vs := range it.Params.SlotValues() {
			values[label] = append(values[label], vs...)
		}
	}
	for _, e := range record.Entities {
		counts := o.slots[e.Label]
		counts[0]++
		if slotFound(record.Surface(e), values[e.Label]) {
			counts[1]++
		}
		o.slots[e.Label] = counts
	}
	return o
}

// slotFound 比较时忽略大小写与首尾空白，并允许标注片段只覆盖取值的一部分。
func slotFound(surface string, values []string) bool {
	surface = strings.ToLower(strings.TrimSpace(surface))
	if surface == "" {
		return false
	}
	for _, v := range values {
		v = strings.ToLower(v)
		if v == surface || strings.Contains(v, surface) {
			return true
		}
	}
	return false
}

func labelText(label *string) string {
	if label == nil {
		return ""
	}
	return *label
}

// SlotLabels 返回报告中的槽位标签，按名称排序。
func (r Report) SlotLabels() []string {
	labels := make([]string, 0, len(r.Slots))
	for label := range r.Slots {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
