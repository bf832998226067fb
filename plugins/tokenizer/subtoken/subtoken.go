// Package subtoken 实现 contract.Tokenizer：驼峰拆分、标点加空格、空白折叠、小写化。
package subtoken

import (
	"regexp"
	"strings"

	"jdprep/pkg/contract"
)

var (
	// ASCII 标点（等价于 POSIX [:punct:]）。
	punctRe = regexp.MustCompile(`[!-/:-@\[-` + "`" + `{-~]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Options: 暂无可调项，保留以便注册表统一解码。
type Options struct{}

// Tokenizer 实现 contract.Tokenizer；无状态，可并发使用。
type Tokenizer struct{}

var _ contract.Tokenizer = Tokenizer{}

// New 创建分词器。
func New(_ *Options) Tokenizer { return Tokenizer{} }

// Tokenize 将代码片段转换为单行 token 串。
func (Tokenizer) Tokenize(code string) string {
	s := strings.Join(SplitCamel(code), " ")
	s = strings.TrimSpace(s)
	s = punctRe.ReplaceAllString(s, " $0 ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// SplitCamel 在驼峰边界处切分：
//   - 非大写字符之后的大写字母之前（"getHash" -> "get","Hash"）；
//   - 后随小写字母的大写字母之前（"HTMLParser" -> "HTML","Parser"）。
//
// 位置 0 从不切分；片段按原顺序返回，拼接后与输入相同。
func SplitCamel(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	last := 0
	for p := 1; p < len(s); p++ {
		if !isUpper(s[p]) {
			continue
		}
		if !isUpper(s[p-1]) || (p+1 < len(s) && isLower(s[p+1])) {
			parts = append(parts, s[last:p])
			last = p
		}
	}
	return append(parts, s[last:])
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
