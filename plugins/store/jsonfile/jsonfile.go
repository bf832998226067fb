// Package jsonfile 实现 contract.Store：读取 id→文本 的键值 JSON，写出调试用的处理结果。
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"jdprep/pkg/contract"
)

// 默认文件名。
const (
	DefaultFunctionsFile = "functions.json"
	DefaultCommentsFile  = "comments.json"
	DefaultMethodsOut    = "methodsProcessed.json"
	DefaultSummariesOut  = "summariesProcessed.json"
)

// Options: 最小必要选项。
type Options struct {
	// FunctionsFile/CommentsFile: 输入文件名（相对数据目录）。
	FunctionsFile string `json:"functions_file,omitempty"`
	CommentsFile  string `json:"comments_file,omitempty"`
	// MethodsOut/SummariesOut: 调试输出文件名。
	MethodsOut   string `json:"methods_out,omitempty"`
	SummariesOut string `json:"summaries_out,omitempty"`
	// AlignByID: 按共同 id 配对（默认按文档顺序位置配对）；仅一侧存在的 id 被丢弃。
	AlignByID bool `json:"align_by_id,omitempty"`
	// Indent: 输出缩进空格数；默认 4，负数输出紧凑 JSON。
	Indent int `json:"indent,omitempty"`
}

// Store 实现 contract.Store。
type Store struct {
	functions string
	comments  string
	methods   string
	summaries string
	byID      bool
	indent    string

	unpaired int
}

var _ contract.Store = (*Store)(nil)

// UnpairedCount 返回最近一次载入时按 id 对齐丢弃的记录数。
func (s *Store) UnpairedCount() int { return s.unpaired }

// New 创建 Store。
func New(opts *Options) *Store {
	if opts == nil {
		opts = &Options{}
	}
	s := &Store{
		functions: pick(opts.FunctionsFile, DefaultFunctionsFile),
		comments:  pick(opts.CommentsFile, DefaultCommentsFile),
		methods:   pick(opts.MethodsOut, DefaultMethodsOut),
		summaries: pick(opts.SummariesOut, DefaultSummariesOut),
		byID:      opts.AlignByID,
		indent:    "    ",
	}
	switch {
	case opts.Indent < 0:
		s.indent = ""
	case opts.Indent > 0:
		s.indent = string(bytes.Repeat([]byte{' '}, opts.Indent))
	}
	return s
}

func pick(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// entry: 一个键值对（保持文档顺序）。
type entry struct {
	id   string
	text string
}

// Load 读取代码与摘要两个 JSON 对象并展开为对齐记录。
func (s *Store) Load(ctx context.Context, src contract.Source) ([]contract.Record, error) {
	s.unpaired = 0
	codes, err := s.readObject(ctx, src, s.functions)
	if err != nil {
		return nil, err
	}
	sums, err := s.readObject(ctx, src, s.comments)
	if err != nil {
		return nil, err
	}
	if s.byID {
		return s.alignByID(codes, sums), nil
	}
	cs := make([]string, len(codes))
	for i, e := range codes {
		cs[i] = e.text
	}
	ss := make([]string, len(sums))
	for i, e := range sums {
		ss[i] = e.text
	}
	recs, err := contract.Zip(cs, ss)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", s.functions, s.comments, err)
	}
	return recs, nil
}

func (s *Store) alignByID(codes, sums []entry) []contract.Record {
	idx := make(map[string]string, len(sums))
	for _, e := range sums {
		if _, dup := idx[e.id]; !dup {
			idx[e.id] = e.text
		}
	}
	used := make(map[string]bool, len(codes))
	out := make([]contract.Record, 0, len(codes))
	for _, e := range codes {
		sum, ok := idx[e.id]
		if !ok || used[e.id] {
			continue
		}
		used[e.id] = true
		out = append(out, contract.Record{Code: e.text, Summary: sum})
	}
	s.unpaired = len(codes) + len(sums) - 2*len(out)
	return out
}

// readObject 以 token 流读取顶层 JSON 对象，保持键的文档顺序。
func (s *Store) readObject(ctx context.Context, src contract.Source, name string) ([]entry, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	bad := func(err error) error {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("%w: %s: %v", contract.ErrDataNotFound, name, err)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, bad(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, bad(fmt.Errorf("top level must be an object"))
	}
	var out []entry
	for dec.More() {
		if len(out)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, bad(err)
		}
		key, _ := tok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return nil, bad(fmt.Errorf("key %q: %v", key, err))
		}
		out = append(out, entry{id: key, text: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, bad(err)
	}
	return out, nil
}

// Save 写出 {"methods":[...]} 与 {"summaries":[...]}（不转义 HTML）。
func (s *Store) Save(ctx context.Context, w contract.Writer, recs []contract.Record) error {
	if err := s.writeList(ctx, w, s.methods, "methods", contract.Codes(recs)); err != nil {
		return err
	}
	return s.writeList(ctx, w, s.summaries, "summaries", contract.Summaries(recs))
}

func (s *Store) writeList(ctx context.Context, w contract.Writer, name, key string, items []string) error {
	if items == nil {
		items = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if s.indent != "" {
		enc.SetIndent("", s.indent)
	}
	if err := enc.Encode(map[string][]string{key: items}); err != nil {
		return fmt.Errorf("%w: encode %s: %v", contract.ErrIO, name, err)
	}
	if err := w.Write(ctx, contract.NormalizeArtifactID(name), &buf); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
