// Package treesitter 以 Tree-sitter Java 语法实现 contract.CodeParser。
//
// 片段被包裹进一个合成类体后解析；仅当语法树无错误、且类体内恰有一个非注释成员时视为
// “单个独立声明”。注释节点按原片段的字节区间报告，供 contract.Form.Strip 移除。
package treesitter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"jdprep/pkg/contract"
)

const (
	wrapPrefix = "class JdprepFragment {\n"
	wrapSuffix = "\n}\n"
)

// Options: 最小必要选项。
type Options struct {
	// CacheSize: 相同片段的解析结果缓存条数；0 使用默认 4096，负数关闭缓存。
	CacheSize int `json:"cache_size"`
}

type outcome struct {
	form contract.Form
	ok   bool
}

// Parser 实现 contract.CodeParser；可被多个 goroutine 同时调用。
type Parser struct {
	lang  *sitter.Language
	cache *lru.Cache[[32]byte, outcome]
}

var _ contract.CodeParser = (*Parser)(nil)

// New 创建解析器。
func New(opts *Options) (*Parser, error) {
	size := 4096
	if opts != nil && opts.CacheSize != 0 {
		size = opts.CacheSize
	}
	p := &Parser{lang: java.GetLanguage()}
	if size > 0 {
		c, err := lru.New[[32]byte, outcome](size)
		if err != nil {
			return nil, err
		}
		p.cache = c
	}
	return p, nil
}

// Parse 将片段解析为单个类体成员声明。
func (p *Parser) Parse(ctx context.Context, code string) (contract.Form, error) {
	select {
	case <-ctx.Done():
		return contract.Form{}, ctx.Err()
	default:
	}
	var key [32]byte
	if p.cache != nil {
		key = sha256.Sum256([]byte(code))
		if o, hit := p.cache.Get(key); hit {
			return o.result()
		}
	}
	o, err := p.parse(ctx, code)
	if err != nil {
		return contract.Form{}, err
	}
	if p.cache != nil {
		p.cache.Add(key, o)
	}
	return o.result()
}

func (o outcome) result() (contract.Form, error) {
	if !o.ok {
		return contract.Form{}, fmt.Errorf("%w: not a single standalone declaration", contract.ErrParseFailure)
	}
	return o.form, nil
}

func (p *Parser) parse(ctx context.Context, code string) (outcome, error) {
	if strings.TrimSpace(code) == "" {
		return outcome{}, nil
	}
	src := []byte(wrapPrefix + code + wrapSuffix)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return outcome{}, cerr
		}
		return outcome{}, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return outcome{}, nil
	}
	// 片段可能提前闭合合成类体（例如 "} class X {"），要求顶层恰为一个类声明。
	if root.NamedChildCount() != 1 {
		return outcome{}, nil
	}
	class := root.NamedChild(0)
	if class.Type() != "class_declaration" {
		return outcome{}, nil
	}
	body := class.ChildByFieldName("body")
	if body == nil {
		return outcome{}, nil
	}
	var member *sitter.Node
	for i := 0; i < int(body.ChildCount()); i++ {
		n := body.Child(i)
		switch {
		case isComment(n):
		case n.Type() == "{" || n.Type() == "}":
		case n.IsNamed() && member == nil:
			member = n
		default:
			// 第二个成员或多余的 ';'
			return outcome{}, nil
		}
	}
	if member == nil {
		return outcome{}, nil
	}
	// 语法对未知关键字宽容（"return x;" 会被读成字段声明），标识符不得为保留字。
	if usesReservedWord(member, src) {
		return outcome{}, nil
	}

	off := len(wrapPrefix)
	var comments []contract.Comment
	walk(body, func(n *sitter.Node) {
		if !isComment(n) {
			return
		}
		start, end := int(n.StartByte())-off, int(n.EndByte())-off
		if start < 0 || end > len(code) || start >= end {
			return
		}
		comments = append(comments, contract.Comment{Kind: kindOf(code[start:end]), Start: start, End: end})
	})
	return outcome{ok: true, form: contract.Form{Source: code, Comments: comments}}, nil
}

// walk 先序遍历（含匿名节点；注释作为 extras 出现在任意层级）。
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

// reserved: Java 保留字与字面量（不含 var/record/yield 等上下文关键字）。
var reserved = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`abstract assert boolean break byte case catch char class const
		continue default do double else enum extends final finally float for goto if implements
		import instanceof int interface long native new package private protected public return
		short static strictfp super switch synchronized this throw throws transient try void
		volatile while true false null`) {
		reserved[w] = true
	}
}

func usesReservedWord(member *sitter.Node, src []byte) bool {
	hit := false
	walk(member, func(n *sitter.Node) {
		if hit {
			return
		}
		switch n.Type() {
		case "identifier", "type_identifier":
			hit = reserved[n.Content(src)]
		}
	})
	return hit
}

func isComment(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

func kindOf(text string) contract.CommentKind {
	switch {
	case strings.HasPrefix(text, "//"):
		return contract.CommentLine
	case strings.HasPrefix(text, "/**") && text != "/**/":
		return contract.CommentDoc
	default:
		return contract.CommentBlock
	}
}
