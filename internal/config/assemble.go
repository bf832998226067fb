package config

import (
	"fmt"
	"strings"

	"jdprep/internal/pipeline"
	"jdprep/pkg/contract"
	"jdprep/pkg/registry"
)

// Validate 对最小必要边界做静态校验；错误统一包裹 ErrConfiguration。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.DataLocation) == "" {
		return invalid("data_location empty")
	}
	if cfg.Concurrency < 1 {
		return invalid("concurrency must be >= 1")
	}
	plan := cfg.Split.Plan()
	if err := plan.Check(); err != nil {
		return fmt.Errorf("config: split: %w", err)
	}
	if capa := deref(cfg.Capacity); capa > 0 && plan.Total > capa {
		return invalid("split.total(%d) exceeds capacity(%d)", plan.Total, capa)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q unknown", cfg.Logging.Level)
	}
	if _, err := pipeline.LookupTransforms(cfg.SummaryTransforms); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return invalid("reader %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return invalid("writer %q not registered", name)
	}
	if name := effName(cfg.Components.Parser, d.Parser); registry.Parser[name] == nil {
		return invalid("parser %q not registered", name)
	}
	if name := effName(cfg.Components.Store, d.Store); registry.Store[name] == nil {
		return invalid("store %q not registered", name)
	}
	if name := effName(cfg.Components.Tokenizer, d.Tokenizer); registry.Tokenizer[name] == nil {
		return invalid("tokenizer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults().Components
	root := strings.TrimSpace(cfg.DataLocation)

	src, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](root, cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, options("reader", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](root, cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, options("writer", err)
	}
	p, err := registry.Parser[effName(cfg.Components.Parser, d.Parser)](cfg.Options.Parser)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, options("parser", err)
	}
	st, err := registry.Store[effName(cfg.Components.Store, d.Store)](cfg.Options.Store)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, options("store", err)
	}
	tk, err := registry.Tokenizer[effName(cfg.Components.Tokenizer, d.Tokenizer)](cfg.Options.Tokenizer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, options("tokenizer", err)
	}
	// 已在 Validate 中校验过名称
	chain, _ := pipeline.LookupTransforms(cfg.SummaryTransforms)

	comp := pipeline.Components{
		Source:    src,
		Store:     st,
		Parser:    p,
		Tokenizer: tk,
		Writer:    w,
	}
	set := pipeline.Settings{
		Capacity:        deref(cfg.Capacity),
		Plan:            cfg.Split.Plan(),
		Seed:            cfg.Seed,
		Concurrency:     cfg.Concurrency,
		Transforms:      chain,
		SkipDebugOutput: cfg.SkipDebugOutput,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("config: %w: "+format, append([]any{contract.ErrConfiguration}, args...)...)
}

func options(comp string, err error) error {
	return fmt.Errorf("config: %w: options.%s: %v", contract.ErrConfiguration, comp, err)
}
