package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"jdprep/pkg/contract"
)

// Transform: 摘要归一化链中的一步。
type Transform struct {
	Name  string
	Apply func(string) string
}

// 归一化步骤名（可在配置 summary_transforms 中引用）。
const (
	TransformStripMarkup  = "strip_markup"
	TransformFirstLine    = "first_line"
	TransformLowercase    = "lowercase"
	TransformStripSpecial = "strip_special"
)

var (
	markupRe  = regexp.MustCompile(`<[^<]+?>`)
	specialRe = regexp.MustCompile(`[^a-z0-9 .']`)
)

var transforms = map[string]func(string) string{
	TransformStripMarkup:  StripMarkup,
	TransformFirstLine:    FirstLine,
	TransformLowercase:    strings.ToLower,
	TransformStripSpecial: StripSpecial,
}

// DefaultTransformNames 返回默认归一化链（顺序有意义）。
func DefaultTransformNames() []string {
	return []string{TransformStripMarkup, TransformFirstLine, TransformLowercase, TransformStripSpecial}
}

// LookupTransforms 按名称构建归一化链；未知名称返回 ErrConfiguration。
// names 为空时使用默认链。
func LookupTransforms(names []string) ([]Transform, error) {
	if len(names) == 0 {
		names = DefaultTransformNames()
	}
	chain := make([]Transform, 0, len(names))
	for _, n := range names {
		fn, ok := transforms[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown summary transform %q (known: %s)",
				contract.ErrConfiguration, n, strings.Join(DefaultTransformNames(), ","))
		}
		chain = append(chain, Transform{Name: strings.TrimSpace(n), Apply: fn})
	}
	return chain, nil
}

// Normalize 依次对整个序列应用每一步：上一步处理完全部摘要后才开始下一步。
// 原地修改 recs[i].Summary 并返回 recs。
func Normalize(recs []contract.Record, chain []Transform) []contract.Record {
	for _, t := range chain {
		for i := range recs {
			recs[i].Summary = t.Apply(recs[i].Summary)
		}
	}
	return recs
}

// StripMarkup 将类 HTML/XML 标签（非贪婪，不识别嵌套）替换为单个空格。
func StripMarkup(s string) string {
	return markupRe.ReplaceAllString(s, " ")
}

// FirstLine 取第一条“有意义”的行：tab 替换为空格并去首尾空白后长度 > 8。
// 返回值为该行去首尾空白（行内 tab 保留）；没有合格行时原文不变。
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		flat := trimControl(strings.ReplaceAll(line, "\t", " "))
		if utf8.RuneCountInString(flat) > 8 {
			return trimControl(line)
		}
	}
	return s
}

// StripSpecial 将 [a-z0-9 .'] 之外的字符替换为空格；幂等。
func StripSpecial(s string) string {
	return specialRe.ReplaceAllString(s, " ")
}

// trimControl 去除首尾的空白与控制字符（码点 <= U+0020）。
func trimControl(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
}
