package corpus

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/internal/intent"
)

// Entity 是按字符偏移标注的实体，区间左闭右开。
type Entity struct {
	Start int    `json:"start" validate:"gte=0"`
	End   int    `json:"end" validate:"gtfield=Start"`
	Label string `json:"label" validate:"required,slot_label"`
}

// Record 是一条训练语料。未标注的原始指令 Entities 为空且 Intent 为 nil。
type Record struct {
	ID        string   `json:"id,omitempty"`
	Prompt    string   `json:"prompt" validate:"required"`
	Entities  []Entity `json:"entities" validate:"dive"`
	Intent    *string  `json:"intent" validate:"omitempty,intent_label"`
	CreatedAt int64    `json:"created_at,omitempty"`
}

// Annotated 判断记录是否带有人工标注。
func (r Record) Annotated() bool {
	return r.Intent != nil || len(r.Entities) > 0
}

// Surface 返回实体在原文中的片段，越界时返回空串。
func (r Record) Surface(e Entity) string {
	runes := []rune(r.Prompt)
	if e.Start < 0 || e.End > len(runes) || e.Start >= e.End {
		return ""
	}
	return string(runes[e.Start:e.End])
}

var validate = newValidator()

// newValidator 注册语料标签校验，取值与解析器的意图类别和槽位标签保持一致。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	slots := make(map[string]struct{})
	for _, label := range intent.SlotLabels() {
		slots[label] = struct{}{}
	}
	_ = v.RegisterValidation("slot_label", func(fl validator.FieldLevel) bool {
		_, ok := slots[fl.Field().String()]
		return ok
	})
	_ = v.RegisterValidation("intent_label", func(fl validator.FieldLevel) bool {
		return intent.Label(fl.Field().String()).Valid()
	})
	return v
}

// Validate 校验字段取值以及实体偏移是否落在指令文本范围内。
func (r Record) Validate() error {
	if !utf8.ValidString(r.Prompt) {
		return xerrors.New(xerrors.CodeMalformedInput, "prompt 不是合法的 UTF-8 文本")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "prompt 不能为空")
	}
	if err := validate.Struct(r); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, describeValidation(err))
	}
	length := utf8.RuneCountInString(r.Prompt)
	for i, e := range r.Entities {
		if e.End > length {
			return xerrors.New(xerrors.CodeInvalidArgument,
				fmt.Sprintf("entities[%d] 超出文本范围: end=%d, 文本长度=%d", i, e.End, length),
				xerrors.WithMetadata("entity", fmt.Sprint(i)))
		}
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "语料记录校验失败"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s 不满足 %s", fe.Namespace(), fe.Tag()))
	}
	return "语料记录校验失败: " + strings.Join(parts, "; ")
}

func cloneRecord(r Record) Record {
	out := r
	out.Entities = append([]Entity{}, r.Entities...)
	if r.Intent != nil {
		intent := *r.Intent
		out.Intent = &intent
	}
	return out
}
