package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"jdprep/pkg/contract"
)

// 切分名与每个切分下的三个并行文件。
const (
	SplitTest  = "test"
	SplitTrain = "train"
	SplitDev   = "dev"

	FileCode    = "code.original"
	FileTokens  = "code.original_subtoken"
	FileSummary = "javadoc.original"
)

// Plan: 切分计划。要求 Test+Train+Dev == Total。
type Plan struct {
	Total int
	Test  int
	Train int
	Dev   int
}

// Check 校验计划自身一致性（不涉及可用记录数）。
func (p Plan) Check() error {
	if p.Test < 0 || p.Train < 0 || p.Dev < 0 {
		return fmt.Errorf("%w: split sizes must be >= 0 (test=%d train=%d dev=%d)", contract.ErrConfiguration, p.Test, p.Train, p.Dev)
	}
	if p.Test+p.Train+p.Dev != p.Total {
		return fmt.Errorf("%w: split sizes %d+%d+%d != total %d", contract.ErrConfiguration, p.Test, p.Train, p.Dev, p.Total)
	}
	return nil
}

// Assignment: 三个不相交的连续区间（保持随机顺序）。
type Assignment struct {
	Test  []int
	Train []int
	Dev   []int
}

// NewRand 创建随机源：seed 为 0 时每次运行不同，非 0 时可复现。
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GenerateOrder 返回 [0,n) 的均匀随机排列。
func GenerateOrder(n int, rng *rand.Rand) []int {
	if rng == nil {
		rng = NewRand(0)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// Partition 按 test、train、dev 顺序切出连续区间：
// test=order[0:Test]，train=order[Test:Test+Train]，dev=order[Test+Train:Total]。
func Partition(order []int, plan Plan) (Assignment, error) {
	if err := plan.Check(); err != nil {
		return Assignment{}, err
	}
	if plan.Total > len(order) {
		return Assignment{}, fmt.Errorf("%w: split total %d exceeds available records %d", contract.ErrConfiguration, plan.Total, len(order))
	}
	a := plan.Test
	b := a + plan.Train
	return Assignment{
		Test:  order[:a:a],
		Train: order[a:b:b],
		Dev:   order[b:plan.Total:plan.Total],
	}, nil
}

// WriteSplit 将 indices 指向的记录按给定顺序写入 name/ 下的三个并行文件，
// 每条记录一行：原始代码（换行压平为空格）、分词代码、去首尾空白的摘要。
func WriteSplit(ctx context.Context, w contract.Writer, name string, indices []int, recs []contract.Record) error {
	for _, i := range indices {
		if i < 0 || i >= len(recs) {
			return fmt.Errorf("%w: split %s index %d out of range [0,%d)", contract.ErrInvariantViolation, name, i, len(recs))
		}
	}
	views := []struct {
		file string
		line func(contract.Record) string
	}{
		{FileCode, func(r contract.Record) string { return flatten(r.Code) }},
		{FileTokens, func(r contract.Record) string { return flatten(r.Tokens) }},
		{FileSummary, func(r contract.Record) string { return flatten(trimControl(r.Summary)) }},
	}
	for _, v := range views {
		id := contract.JoinArtifactID(name, v.file)
		lr := &lineReader{recs: recs, idx: indices, line: v.line}
		if err := w.Write(ctx, id, lr); err != nil {
			return fmt.Errorf("write %s: %w", id, err)
		}
	}
	return nil
}

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// flatten 将记录内的换行替换为空格，保证一条记录恰为一行。
func flatten(s string) string {
	return newlineReplacer.Replace(s)
}

// lineReader 按需逐行生成内容，避免为大切分构造完整缓冲。
type lineReader struct {
	recs []contract.Record
	idx  []int
	line func(contract.Record) string
	pos  int
	buf  []byte
}

func (l *lineReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(l.buf) == 0 {
			if l.pos >= len(l.idx) {
				break
			}
			l.buf = append(l.buf[:0], l.line(l.recs[l.idx[l.pos]])...)
			l.buf = append(l.buf, '\n')
			l.pos++
		}
		c := copy(p[n:], l.buf)
		l.buf = l.buf[c:]
		n += c
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}
