package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"jdprep/internal/diag"
	"jdprep/pkg/contract"
)

// - 阶段顺序固定：load → validate → cap → normalize → dedupe → tokenize → dedupe → split → persist；
// - 每个阶段对完整序列运行到结束后才进入下一阶段，单向、无回滚、无重试；
// - 唯一可选的并发点是 validate 的 worker 池（结果按原下标归位）；
// - 配置类错误（切分总量超过可用记录）在写出任何文件之前返回。

// Components 聚合运行所需的原子组件。
type Components struct {
	Source    contract.Source
	Store     contract.Store
	Parser    contract.CodeParser
	Tokenizer contract.Tokenizer
	Writer    contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Capacity: 过滤后保留的最大记录数；<=0 不截断。
	Capacity int
	// Plan: test/train/dev 切分大小。
	Plan Plan
	// Seed: 随机排列种子；0 表示每次运行不同。
	Seed uint64
	// Concurrency: validate 阶段的解析并发度。
	Concurrency int
	// Transforms: 摘要归一化链；为空时使用默认链。
	Transforms []Transform
	// SkipDebugOutput: 不写 methodsProcessed.json / summariesProcessed.json。
	SkipDebugOutput bool
}

// Result 汇总一次运行各阶段的记录数。
type Result struct {
	Loaded     int
	Unpaired   int // 按 id 对齐时丢弃的孤儿记录
	Good       int
	Bad        int
	Capped     int
	Deduped    int
	Final      int
	Dropped    int // 第一次去重丢弃
	DroppedTok int // 第二次去重丢弃
	Test       int
	Train      int
	Dev        int
}

// unpairedCounter: Store 的可选能力，报告最近一次载入中无法配对而丢弃的记录数。
type unpairedCounter interface {
	UnpairedCount() int
}

// Run 执行完整流水线并返回各阶段计数。
// 进程内计数器在开始时清零，调用方可在结束后读取 diag.Snapshot。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Result, error) {
	var res Result
	diag.ResetMetrics()
	if err := sanity(comp, set); err != nil {
		return res, fmt.Errorf("sanity: %w", err)
	}
	chain := set.Transforms
	if len(chain) == 0 {
		var err error
		if chain, err = LookupTransforms(nil); err != nil {
			return res, err
		}
	}

	// Loaded
	var recs []contract.Record
	err := stage(ctx, logger, "store", "load", 0, func() (int, map[string]string, error) {
		var err error
		recs, err = comp.Store.Load(ctx, comp.Source)
		return len(recs), nil, err
	})
	if err != nil {
		return res, fmt.Errorf("store load: %w", err)
	}
	res.Loaded = len(recs)
	if uc, ok := comp.Store.(unpairedCounter); ok {
		if res.Unpaired = uc.UnpairedCount(); res.Unpaired > 0 {
			logger.WarnKV("store", "unpaired ids dropped", map[string]string{
				"unpaired": strconv.Itoa(res.Unpaired),
				"loaded":   strconv.Itoa(res.Loaded),
			})
		}
	}

	// Validated
	err = stage(ctx, logger, "validate", "filter", len(recs), func() (int, map[string]string, error) {
		total := len(recs)
		vr, err := Validate(ctx, comp.Parser, recs, ValidateOptions{
			Concurrency: set.Concurrency,
			Logger:      logger,
			Progress: func(done, bad int) {
				diag.GetTerminal().StageProgress(done, total, bad)
			},
		})
		if err != nil {
			return 0, nil, err
		}
		recs = vr.Records
		res.Good, res.Bad = vr.Good, vr.Bad
		return vr.Good, map[string]string{"good": strconv.Itoa(vr.Good), "bad": strconv.Itoa(vr.Bad)}, nil
	})
	if err != nil {
		return res, err
	}

	// Capped
	err = stage(ctx, logger, "limit", "cap", len(recs), func() (int, map[string]string, error) {
		recs = Limit(recs, set.Capacity)
		return len(recs), map[string]string{"capacity": strconv.Itoa(set.Capacity)}, nil
	})
	if err != nil {
		return res, err
	}
	res.Capped = len(recs)

	// Normalized
	err = stage(ctx, logger, "normalize", "summaries", len(recs), func() (int, map[string]string, error) {
		recs = Normalize(recs, chain)
		names := ""
		for i, t := range chain {
			if i > 0 {
				names += ","
			}
			names += t.Name
		}
		return len(recs), map[string]string{"chain": names}, nil
	})
	if err != nil {
		return res, err
	}

	// Deduplicated
	err = stage(ctx, logger, "dedupe", "summary", len(recs), func() (int, map[string]string, error) {
		recs, res.Dropped = Dedupe(recs)
		return len(recs), map[string]string{"dropped": strconv.Itoa(res.Dropped)}, nil
	})
	if err != nil {
		return res, err
	}
	res.Deduped = len(recs)

	// Tokenized
	err = stage(ctx, logger, "tokenizer", "tokenize", len(recs), func() (int, map[string]string, error) {
		for i := range recs {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return i, nil, err
				}
				diag.GetTerminal().StageProgress(i, len(recs), 0)
			}
			recs[i].Tokens = comp.Tokenizer.Tokenize(recs[i].Code)
		}
		return len(recs), nil, nil
	})
	if err != nil {
		return res, err
	}

	// Deduplicated(final)
	err = stage(ctx, logger, "dedupe", "summary+tokens", len(recs), func() (int, map[string]string, error) {
		recs, res.DroppedTok = Dedupe(recs)
		return len(recs), map[string]string{"dropped": strconv.Itoa(res.DroppedTok)}, nil
	})
	if err != nil {
		return res, err
	}
	res.Final = len(recs)

	// Partitioned：总量超过可用记录数在任何写出之前报错
	var asg Assignment
	err = stage(ctx, logger, "split", "partition", len(recs), func() (int, map[string]string, error) {
		order := GenerateOrder(len(recs), NewRand(set.Seed))
		var err error
		asg, err = Partition(order, set.Plan)
		if err != nil {
			return 0, nil, err
		}
		return set.Plan.Total, map[string]string{
			"test":  strconv.Itoa(len(asg.Test)),
			"train": strconv.Itoa(len(asg.Train)),
			"dev":   strconv.Itoa(len(asg.Dev)),
		}, nil
	})
	if err != nil {
		return res, err
	}

	for _, part := range []struct {
		name string
		idx  []int
	}{{SplitTest, asg.Test}, {SplitTrain, asg.Train}, {SplitDev, asg.Dev}} {
		err = stage(ctx, logger, "writer", "split:"+part.name, len(part.idx), func() (int, map[string]string, error) {
			t := logger.StartArtifact("writer", "split", part.name)
			if err := WriteSplit(ctx, comp.Writer, part.name, part.idx, recs); err != nil {
				return 0, nil, err
			}
			t.Finish("split", int64(len(part.idx)))
			return len(part.idx), nil, nil
		})
		if err != nil {
			return res, err
		}
	}
	res.Test, res.Train, res.Dev = len(asg.Test), len(asg.Train), len(asg.Dev)

	// Persisted
	if !set.SkipDebugOutput {
		err = stage(ctx, logger, "store", "save", len(recs), func() (int, map[string]string, error) {
			return len(recs), nil, comp.Store.Save(ctx, comp.Writer, recs)
		})
		if err != nil {
			return res, fmt.Errorf("store save: %w", err)
		}
	}
	return res, nil
}

// stage 包装单个阶段：开始/结束日志、终端提示、计数器与错误分类。
// fn 返回保留记录数与附加键值；ctx 已取消时不进入阶段。
func stage(ctx context.Context, logger *diag.Logger, comp, name string, total int, fn func() (int, map[string]string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	label := comp + ":" + name
	term := diag.GetTerminal()
	term.StageStart(label, total)
	t0 := time.Now()
	timer := logger.StartWithKV(comp, name, map[string]string{"records": strconv.Itoa(total)})

	kept, kv, err := fn()
	dur := time.Since(t0)
	diag.ObserveDuration(comp, name, dur.Milliseconds())
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWithKV(comp, string(code), name+" failed: "+err.Error(), &t0, kv)
		diag.IncOp(comp, name, "error")
		if code != diag.CodeUnknown {
			diag.IncError(comp, string(code))
		}
		term.StageFinish(false, kept, dur)
		return err
	}
	timer.FinishWithKV(name, int64(kept), kv)
	diag.IncOp(comp, name, "success")
	term.StageFinish(true, kept, dur)
	return nil
}

func sanity(c Components, s Settings) error {
	if c.Source == nil || c.Store == nil || c.Parser == nil || c.Tokenizer == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if err := s.Plan.Check(); err != nil {
		return err
	}
	if s.Capacity > 0 && s.Plan.Total > s.Capacity {
		return fmt.Errorf("%w: split total %d exceeds capacity %d", contract.ErrConfiguration, s.Plan.Total, s.Capacity)
	}
	return nil
}
