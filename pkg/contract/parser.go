package contract

import (
	"context"
	"sort"
	"strings"
)

// CommentKind: 注释分类。
type CommentKind int

const (
	// CommentLine: 行注释 // ...
	CommentLine CommentKind = iota
	// CommentBlock: 块注释 /* ... */
	CommentBlock
	// CommentDoc: 文档注释 /** ... */
	CommentDoc
)

func (k CommentKind) String() string {
	switch k {
	case CommentLine:
		return "line"
	case CommentBlock:
		return "block"
	case CommentDoc:
		return "doc"
	default:
		return "unknown"
	}
}

// Comment: Source 中的一段注释，[Start, End) 为字节区间。
type Comment struct {
	Kind  CommentKind
	Start int
	End   int
}

// Form: 代码片段的结构化形态（StructuralForm）。
// 仅暴露注释节点与原文；非注释部分在重新渲染时逐字节保留。
type Form struct {
	Source   string
	Comments []Comment
}

// CodeParser: 代码结构服务（CodeStructureService）。
// 约束：
//  1. 将片段解析为“单个独立声明”；
//  2. 无法解析时返回包裹 ErrParseFailure 的错误（逐条可恢复）；
//  3. 其余错误（如 ctx 取消）视为致命；
//  4. 实现须可被多个 goroutine 同时调用。
type CodeParser interface {
	Parse(ctx context.Context, code string) (Form, error)
}

// KeepDoc 仅保留文档注释。
func KeepDoc(c Comment) bool { return c.Kind == CommentDoc }

// Render 重新渲染为文本。
func (f Form) Render() string { return f.Source }

// Strip 移除 keep 返回 false 的注释，返回新的 Form（原值不变）。
// 规则：
// - 跨行注释若两侧同一行上都有代码，整段按一处行内删除处理（不保留其中的换行）；
// - 被移除注释所在行若因此只剩空白，则整行（含换行）删除；
// - 被触及但仍有内容的行去除行尾空白；
// - 其余字节原样保留。
func (f Form) Strip(keep func(Comment) bool) Form {
	f = f.join(keep)
	src := f.Source
	removed := make([]bool, len(src)+1)
	var kept []Comment
	hit := false
	for _, c := range f.Comments {
		if keep != nil && keep(c) {
			kept = append(kept, c)
			continue
		}
		start, end := clamp(c.Start, len(src)), clamp(c.End, len(src))
		for i := start; i < end; i++ {
			removed[i] = true
			hit = true
		}
	}
	if !hit {
		return Form{Source: src, Comments: append([]Comment(nil), kept...)}
	}

	// 需要重新定位的偏移（保留注释的起止）。
	want := make(map[int]bool, 2*len(kept))
	for _, c := range kept {
		want[clamp(c.Start, len(src))] = true
		want[clamp(c.End, len(src))] = true
	}
	moved := make(map[int]int, len(want))

	var lines []string
	base := 0
	for ls := 0; ; {
		le, nl := len(src), false
		if k := strings.IndexByte(src[ls:], '\n'); k >= 0 {
			le, nl = ls+k, true
		}
		var line []byte
		touched := false
		local := map[int]int{}
		for i := ls; i < le; i++ {
			if want[i] {
				local[i] = len(line)
			}
			if removed[i] {
				touched = true
				continue
			}
			line = append(line, src[i])
		}
		if want[le] {
			local[le] = len(line)
		}
		drop := false
		if touched {
			trimmed := strings.TrimRight(string(line), " \t\r")
			if strings.TrimSpace(trimmed) == "" {
				drop = true
			}
			line = []byte(trimmed)
		}
		if !drop {
			for o, p := range local {
				if p > len(line) {
					p = len(line)
				}
				moved[o] = base + p
			}
			lines = append(lines, string(line))
			base += len(line) + 1
		}
		if !nl {
			break
		}
		ls = le + 1
	}

	out := Form{Source: strings.Join(lines, "\n")}
	for _, c := range kept {
		s, okS := moved[clamp(c.Start, len(src))]
		e, okE := moved[clamp(c.End, len(src))]
		if okS && okE {
			out.Comments = append(out.Comments, Comment{Kind: c.Kind, Start: s, End: e})
		}
	}
	sort.Slice(out.Comments, func(i, j int) bool { return out.Comments[i].Start < out.Comments[j].Start })
	return out
}

// join 预先删除“两侧都有代码”的跨行注释：必要时以单个空格分隔，并平移其余注释偏移。
func (f Form) join(keep func(Comment) bool) Form {
	src := f.Source
	type edit struct {
		start, end int
		repl       string
	}
	var edits []edit
	for _, c := range f.Comments {
		if keep != nil && keep(c) {
			continue
		}
		start, end := clamp(c.Start, len(src)), clamp(c.End, len(src))
		if !strings.Contains(src[start:end], "\n") {
			continue
		}
		before := src[strings.LastIndexByte(src[:start], '\n')+1 : start]
		after := src[end:]
		if k := strings.IndexByte(after, '\n'); k >= 0 {
			after = after[:k]
		}
		if strings.TrimSpace(before) == "" || strings.TrimSpace(after) == "" {
			continue
		}
		repl := ""
		if !isSpace(src[start-1]) && !isSpace(src[end]) {
			repl = " "
		}
		edits = append(edits, edit{start, end, repl})
	}
	if len(edits) == 0 {
		return f
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(src[last:e.start])
		b.WriteString(e.repl)
		last = e.end
	}
	b.WriteString(src[last:])

	// shift: 原偏移 → 新偏移（o 不落在被删除区间内部）。
	shift := func(o int) int {
		d := 0
		for _, e := range edits {
			if e.end > o {
				break
			}
			d += e.end - e.start - len(e.repl)
		}
		return o - d
	}
	out := Form{Source: b.String()}
	for _, c := range f.Comments {
		s := clamp(c.Start, len(src))
		joined := false
		for _, e := range edits {
			if e.start == s {
				joined = true
				break
			}
		}
		if joined {
			continue
		}
		out.Comments = append(out.Comments, Comment{Kind: c.Kind, Start: shift(s), End: shift(clamp(c.End, len(src)))})
	}
	return out
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
