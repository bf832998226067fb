package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"jdprep/pkg/contract"
)

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "JDPREP_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：DataLocation 不设默认（必须由配置/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Capacity: intPtr(800000),
		Split: Split{
			Total: intPtr(500000),
			Test:  intPtr(50000),
			Train: intPtr(400000),
			Dev:   intPtr(50000),
		},
		Concurrency: 1,
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader:    "fs",
			Writer:    "fs",
			Parser:    "treesitter",
			Store:     "json",
			Tokenizer: "subtoken",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
		}
		defer f.Close()
		r = f
	default:
		return cfg, fmt.Errorf("%w: no config source provided", contract.ErrConfiguration)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", contract.ErrConfiguration, sourceName(path), err)
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置：先转为 JSON，再走与 LoadJSON 相同的严格解码。
func LoadYAML(path string, raw []byte) (Config, error) {
	if len(raw) == 0 {
		if path == "" {
			return Config{}, fmt.Errorf("%w: no config source provided", contract.ErrConfiguration)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", contract.ErrConfiguration, err)
		}
		raw = b
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", contract.ErrConfiguration, sourceName(path), err)
	}
	if doc == nil {
		return Config{}, nil
	}
	js, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", contract.ErrConfiguration, sourceName(path), err)
	}
	return LoadJSON(path, js)
}

// LoadFile 按扩展名选择解析器（.yaml/.yml 走 YAML，其余按 JSON）。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, nil)
	default:
		return LoadJSON(path, nil)
	}
}

// jsonCompatible 将 YAML 解码出的 map[any]any 递归转为 map[string]any。
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = jsonCompatible(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = jsonCompatible(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = jsonCompatible(e)
		}
		return t
	default:
		return v
	}
}

func sourceName(path string) string {
	if path == "" {
		return "inline config"
	}
	return path
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.DataLocation); s != "" {
		out.DataLocation = s
	}
	if over.Capacity != nil {
		out.Capacity = intPtr(*over.Capacity)
	}
	// Split 逐字段覆盖（指针区分“未设置”与“显式 0”）
	if over.Split.Total != nil {
		out.Split.Total = intPtr(*over.Split.Total)
	}
	if over.Split.Test != nil {
		out.Split.Test = intPtr(*over.Split.Test)
	}
	if over.Split.Train != nil {
		out.Split.Train = intPtr(*over.Split.Train)
	}
	if over.Split.Dev != nil {
		out.Split.Dev = intPtr(*over.Split.Dev)
	}
	if over.Seed != 0 {
		out.Seed = over.Seed
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if len(over.SummaryTransforms) > 0 {
		out.SummaryTransforms = cloneStrings(over.SummaryTransforms)
	}
	if over.SkipDebugOutput {
		out.SkipDebugOutput = true
	}
	// Logging（仅 level）
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.Parser != "" {
		out.Components.Parser = over.Components.Parser
	}
	if over.Components.Store != "" {
		out.Components.Store = over.Components.Store
	}
	if over.Components.Tokenizer != "" {
		out.Components.Tokenizer = over.Components.Tokenizer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Parser) > 0 {
		out.Options.Parser = cloneRaw(over.Options.Parser)
	}
	if len(over.Options.Store) > 0 {
		out.Options.Store = cloneRaw(over.Options.Store)
	}
	if len(over.Options.Tokenizer) > 0 {
		out.Options.Tokenizer = cloneRaw(over.Options.Tokenizer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 JDPREP_；集合之外的键忽略；数值非法时返回 ErrConfiguration。
// 支持：DATA_LOCATION, CAPACITY, SPLIT_{TOTAL,TEST,TRAIN,DEV}, SEED, CONCURRENCY,
// SUMMARY_TRANSFORMS（逗号分隔）, SKIP_DEBUG_OUTPUT, LOG_LEVEL, COMPONENTS_*, OPTIONS_*_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	var errs []error
	num := func(key, val string, set func(int)) {
		v, err := atoi(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s=%q: not an integer", EnvPrefix, key, val))
			return
		}
		set(v)
	}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		nk := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		if strings.TrimSpace(val) == "" {
			// 空值视为未设置，避免清空配置文件中的值
			continue
		}
		switch nk {
		case "DATA_LOCATION":
			over.DataLocation = strings.TrimSpace(val)
		case "CAPACITY":
			num(nk, val, func(v int) { over.Capacity = intPtr(v) })
		case "SPLIT_TOTAL":
			num(nk, val, func(v int) { over.Split.Total = intPtr(v) })
		case "SPLIT_TEST":
			num(nk, val, func(v int) { over.Split.Test = intPtr(v) })
		case "SPLIT_TRAIN":
			num(nk, val, func(v int) { over.Split.Train = intPtr(v) })
		case "SPLIT_DEV":
			num(nk, val, func(v int) { over.Split.Dev = intPtr(v) })
		case "SEED":
			v, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%sSEED=%q: not an unsigned integer", EnvPrefix, val))
				continue
			}
			over.Seed = v
		case "CONCURRENCY":
			num(nk, val, func(v int) { over.Concurrency = v })
		case "SUMMARY_TRANSFORMS":
			over.SummaryTransforms = splitComma(val)
		case "SKIP_DEBUG_OUTPUT":
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				errs = append(errs, fmt.Errorf("%sSKIP_DEBUG_OUTPUT=%q: not a boolean", EnvPrefix, val))
				continue
			}
			over.SkipDebugOutput = b
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "COMPONENTS_PARSER":
			over.Components.Parser = strings.TrimSpace(val)
		case "COMPONENTS_STORE":
			over.Components.Store = strings.TrimSpace(val)
		case "COMPONENTS_TOKENIZER":
			over.Components.Tokenizer = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		case "OPTIONS_PARSER_JSON":
			over.Options.Parser = json.RawMessage(val)
		case "OPTIONS_STORE_JSON":
			over.Options.Store = json.RawMessage(val)
		case "OPTIONS_TOKENIZER_JSON":
			over.Options.Tokenizer = json.RawMessage(val)
		default:
			// CONFIG_FILE / CONFIG_JSON 由 CLI 读取；其余忽略。
		}
	}
	if len(errs) > 0 {
		return over, fmt.Errorf("%w: %v", contract.ErrConfiguration, errors.Join(errs...))
	}
	return over, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
