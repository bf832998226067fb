package config

import (
	"encoding/json"

	"jdprep/internal/pipeline"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// DataLocation: 数据目录（含 functions.json / comments.json，输出也写在此处）。
	DataLocation string `json:"data_location"`
	// Capacity: 过滤后最多保留的记录数；nil 为未设置，<=0 关闭上限。
	Capacity *int `json:"capacity,omitempty"`
	// Split: 切分大小。
	Split Split `json:"split"`
	// Seed: 随机排列种子；0 表示每次运行不同。
	Seed uint64 `json:"seed"`
	// Concurrency: 解析并发度（>=1）。
	Concurrency int `json:"concurrency"`
	// SummaryTransforms: 摘要归一化链（按名称）；空则使用默认链。
	SummaryTransforms []string `json:"summary_transforms,omitempty"`
	// SkipDebugOutput: 不写 methodsProcessed.json / summariesProcessed.json。
	SkipDebugOutput bool    `json:"skip_debug_output,omitempty"`
	Logging         Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Split: test/train/dev 切分大小；nil 字段表示未设置（合并时不覆盖）。
type Split struct {
	Total *int `json:"total,omitempty"`
	Test  *int `json:"test,omitempty"`
	Train *int `json:"train,omitempty"`
	Dev   *int `json:"dev,omitempty"`
}

// Plan 转换为流水线切分计划（未设置视为 0）。
func (s Split) Plan() pipeline.Plan {
	return pipeline.Plan{Total: deref(s.Total), Test: deref(s.Test), Train: deref(s.Train), Dev: deref(s.Dev)}
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Writer    string `json:"writer"`
	Parser    string `json:"parser"`
	Store     string `json:"store"`
	Tokenizer string `json:"tokenizer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader    json.RawMessage `json:"reader,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
	Parser    json.RawMessage `json:"parser,omitempty"`
	Store     json.RawMessage `json:"store,omitempty"`
	Tokenizer json.RawMessage `json:"tokenizer,omitempty"`
}

func intPtr(v int) *int { return &v }

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
