package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"jdprep/pkg/contract"
)

// 通用桩件 ----------------------------------------------------

// fakeParser: 含 "BAD" 的片段解析失败；"//" 行注释被报告为注释，"/**" 开头的行视为文档注释。
type fakeParser struct {
	mu    sync.Mutex
	calls map[string]int
	fatal error
}

func (p *fakeParser) Parse(ctx context.Context, code string) (contract.Form, error) {
	if err := ctx.Err(); err != nil {
		return contract.Form{}, err
	}
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[code]++
	p.mu.Unlock()
	if p.fatal != nil {
		return contract.Form{}, p.fatal
	}
	if strings.Contains(code, "BAD") {
		return contract.Form{}, fmt.Errorf("%w: %q", contract.ErrParseFailure, code)
	}
	var cs []contract.Comment
	off := 0
	for _, line := range strings.SplitAfter(code, "\n") {
		body := strings.TrimRight(line, "\n")
		if i := strings.Index(body, "/**"); i >= 0 {
			cs = append(cs, contract.Comment{Kind: contract.CommentDoc, Start: off + i, End: off + len(body)})
		} else if i := strings.Index(body, "//"); i >= 0 {
			cs = append(cs, contract.Comment{Kind: contract.CommentLine, Start: off + i, End: off + len(body)})
		}
		off += len(line)
	}
	return contract.Form{Source: code, Comments: cs}, nil
}

type prefixTokenizer struct{}

func (prefixTokenizer) Tokenize(code string) string { return "tok:" + strings.ToLower(code) }

type memSource map[string]string

func (m memSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contract.ErrDataNotFound, name)
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

type memWriter struct {
	mu    sync.Mutex
	files map[contract.ArtifactID]string
	fail  contract.ArtifactID
}

func (w *memWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if id == w.fail {
		return fmt.Errorf("%w: %s", contract.ErrIO, id)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = map[contract.ArtifactID]string{}
	}
	w.files[id] = buf.String()
	return nil
}

func (w *memWriter) lines(id contract.ArtifactID) []string {
	s := w.files[id]
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func (w *memWriter) names() []string {
	var out []string
	for k := range w.files {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// memStore 直接返回内存记录，Save 记录最后一次保存的内容。
type memStore struct {
	recs  []contract.Record
	err   error
	saved []contract.Record
}

func (s *memStore) Load(ctx context.Context, src contract.Source) ([]contract.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]contract.Record, len(s.recs))
	copy(out, s.recs)
	return out, nil
}

func (s *memStore) Save(ctx context.Context, w contract.Writer, recs []contract.Record) error {
	s.saved = append([]contract.Record(nil), recs...)
	return w.Write(ctx, "methodsProcessed.json", strings.NewReader(fmt.Sprint(len(recs))))
}
