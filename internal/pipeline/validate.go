package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"jdprep/internal/diag"
	"jdprep/pkg/contract"
)

// ValidationResult: 过滤结果与计数（计数作为返回值，而非对象状态）。
// 不变量：len(Records) == Good，Good + Bad == 输入长度。
type ValidationResult struct {
	Records []contract.Record
	Good    int
	Bad     int
}

// ValidateOptions: 过滤阶段的可选项。
type ValidateOptions struct {
	// Concurrency: 并发解析的 worker 数；<=1 时单 worker。
	Concurrency int
	// Keep: 保留哪些注释；nil 时仅保留文档注释。
	Keep func(contract.Comment) bool
	// Logger: 解析失败以 debug 事件记录（可为 nil）。
	Logger *diag.Logger
	// Progress: 每处理一条回调一次（done 为已处理数，bad 为已丢弃数）。
	Progress func(done, bad int)
}

// Validate 对每条原始记录恰好解析一次：
// - 成功：Code 替换为去除非文档注释后的渲染结果，Good++；
// - ErrParseFailure：整条记录丢弃，Bad++；
// - 其他错误（例如 ctx 取消）：中止并返回。
//
// 遍历的是输入快照，输出为新切片；输入切片不被修改。
// worker 并发解析，结果按原下标归位，输出顺序与计数与顺序执行一致。
func Validate(ctx context.Context, parser contract.CodeParser, recs []contract.Record, opts ValidateOptions) (ValidationResult, error) {
	if parser == nil {
		return ValidationResult{}, errors.New("validate: nil parser")
	}
	keep := opts.Keep
	if keep == nil {
		keep = contract.KeepDoc
	}
	n := len(recs)
	if n == 0 {
		return ValidationResult{Records: []contract.Record{}}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type res struct {
		idx  int
		code string
		err  error
	}
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	// 有界通道：2×并发度，形成自然背压
	inCh := make(chan int, workers*2)
	outCh := make(chan res, workers*2)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for i := range inCh {
			form, err := parser.Parse(ctx, recs[i].Code)
			if err != nil {
				outCh <- res{idx: i, err: err}
				continue
			}
			outCh <- res{idx: i, code: form.Strip(keep).Render()}
		}
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	// 生产者
	go func() {
		defer close(inCh)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case inCh <- i:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outCh)
	}()

	codes := make([]string, n)
	ok := make([]bool, n)
	var firstErr error
	done, bad := 0, 0
	for r := range outCh {
		done++
		switch {
		case r.err == nil:
			codes[r.idx] = r.code
			ok[r.idx] = true
		case errors.Is(r.err, contract.ErrParseFailure):
			bad++
			opts.Logger.DebugEvent("validate", string(diag.CodeParse), "record dropped", map[string]string{
				"index": strconv.Itoa(r.idx),
				"err":   r.err.Error(),
			})
		default:
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
		}
		if opts.Progress != nil {
			opts.Progress(done, bad)
		}
	}
	if firstErr != nil {
		return ValidationResult{}, fmt.Errorf("validate: %w", firstErr)
	}
	// 兜底：生产者因取消提前退出时，未处理的记录不会出现在 outCh 中
	if err := ctx.Err(); err != nil && done < n {
		return ValidationResult{}, fmt.Errorf("validate: %w", err)
	}

	out := make([]contract.Record, 0, n-bad)
	for i, r := range recs {
		if !ok[i] {
			continue
		}
		r.Code = codes[i]
		out = append(out, r)
	}
	return ValidationResult{Records: out, Good: len(out), Bad: bad}, nil
}
