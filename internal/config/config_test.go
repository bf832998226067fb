package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdprep/pkg/contract"
)

// UT-CFG-01: 解析完整 config.json
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("../../testdata/config/basic.json", nil)
	require.NoError(t, err)
	assert.Equal(t, "data/java", cfg.DataLocation)
	require.NotNil(t, cfg.Capacity)
	assert.Equal(t, 8, *cfg.Capacity)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 8, cfg.Split.Plan().Total)
	assert.Equal(t, "fs", cfg.Components.Reader)
	assert.JSONEq(t, `{"cache_size":128}`, string(cfg.Options.Parser))
	require.NoError(t, Validate(cfg))
}

// UT-CFG-01b: YAML 与 JSON 解析结果一致
func TestLoadYAMLMatchesJSON(t *testing.T) {
	j, err := LoadFile("../../testdata/config/basic.json")
	require.NoError(t, err)
	y, err := LoadFile("../../testdata/config/basic.yaml")
	require.NoError(t, err)

	assert.Equal(t, j.DataLocation, y.DataLocation)
	assert.Equal(t, j.Capacity, y.Capacity)
	assert.Equal(t, j.Split, y.Split)
	assert.Equal(t, j.Seed, y.Seed)
	assert.Equal(t, j.Concurrency, y.Concurrency)
	assert.Equal(t, j.SummaryTransforms, y.SummaryTransforms)
	assert.Equal(t, j.Logging, y.Logging)
	assert.Equal(t, j.Components, y.Components)
	assert.JSONEq(t, string(j.Options.Parser), string(y.Options.Parser))
	assert.JSONEq(t, string(j.Options.Store), string(y.Options.Store))
}

func TestLoadYAMLErrors(t *testing.T) {
	_, err := LoadYAML("", []byte("unknown: 1\n"))
	require.ErrorIs(t, err, contract.ErrConfiguration)

	_, err = LoadYAML("", []byte("split: [1, 2\n"))
	require.ErrorIs(t, err, contract.ErrConfiguration)

	cfg, err := LoadYAML("", []byte("# 仅注释\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorIs(t, err, contract.ErrConfiguration)
}

// UT-CFG-02: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"JDPREP_DATA_LOCATION=/data",
		"JDPREP_CAPACITY=-1",
		"JDPREP_SPLIT_DEV=0",
		"JDPREP_SEED=7",
		"JDPREP_CONCURRENCY=3",
		"JDPREP_SUMMARY_TRANSFORMS=strip_markup, lowercase",
		"JDPREP_SKIP_DEBUG_OUTPUT=true",
		"JDPREP_LOG_LEVEL=warn",
		"JDPREP_COMPONENTS_PARSER=treesitter",
		`JDPREP_OPTIONS_PARSER_JSON={"cache_size":-1}`,
		"JDPREP_SPLIT_TEST=",
		"JDPREP_UNKNOWN=1",
		"OTHER=1",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	assert.Equal(t, "/data", over.DataLocation)
	require.NotNil(t, over.Capacity)
	assert.Equal(t, -1, *over.Capacity)
	require.NotNil(t, over.Split.Dev)
	assert.Equal(t, 0, *over.Split.Dev)
	assert.Nil(t, over.Split.Test, "空值视为未设置")
	assert.Equal(t, uint64(7), over.Seed)
	assert.Equal(t, 3, over.Concurrency)
	assert.Equal(t, []string{"strip_markup", "lowercase"}, over.SummaryTransforms)
	assert.True(t, over.SkipDebugOutput)
	assert.Equal(t, "warn", over.Logging.Level)
	assert.Equal(t, "treesitter", over.Components.Parser)
	assert.JSONEq(t, `{"cache_size":-1}`, string(over.Options.Parser))
}

func TestEnvOverlayInvalid(t *testing.T) {
	_, err := EnvOverlay([]string{"JDPREP_CAPACITY=lots", "JDPREP_SEED=-3", "JDPREP_SKIP_DEBUG_OUTPUT=maybe"})
	require.ErrorIs(t, err, contract.ErrConfiguration)
	assert.Contains(t, err.Error(), "JDPREP_CAPACITY")
	assert.Contains(t, err.Error(), "JDPREP_SEED")
	assert.Contains(t, err.Error(), "JDPREP_SKIP_DEBUG_OUTPUT")
}

// UT-CFG-03: 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	_, err := LoadJSON("", []byte(`{"unknown":1}`))
	require.ErrorIs(t, err, contract.ErrConfiguration)

	_, err = LoadJSON("", nil)
	require.ErrorIs(t, err, contract.ErrConfiguration)

	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.ErrorIs(t, err, contract.ErrConfiguration)
}

// 合并：逐层覆盖，未设置不覆盖，显式 0 可覆盖切分字段。
func TestMergeLayers(t *testing.T) {
	base := Defaults()
	file := Config{
		DataLocation: "from-file",
		Split:        Split{Total: intPtr(10), Test: intPtr(5), Train: intPtr(5), Dev: intPtr(0)},
		Options:      Options{Store: json.RawMessage(`{"indent":2}`)},
	}
	cfg := Merge(base, file)
	assert.Equal(t, "from-file", cfg.DataLocation)
	assert.Equal(t, 800000, *cfg.Capacity)
	assert.Equal(t, 10, cfg.Split.Plan().Total)
	assert.Equal(t, 0, cfg.Split.Plan().Dev)
	assert.Equal(t, "treesitter", cfg.Components.Parser)

	cli := Config{Split: Split{Train: intPtr(3), Dev: intPtr(2)}, Concurrency: 4}
	cfg = Merge(cfg, cli)
	assert.Equal(t, 5, cfg.Split.Plan().Test)
	assert.Equal(t, 3, cfg.Split.Plan().Train)
	assert.Equal(t, 2, cfg.Split.Plan().Dev)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.JSONEq(t, `{"indent":2}`, string(cfg.Options.Store))

	// 合并结果不与来源共享指针
	*file.Split.Total = 99
	assert.Equal(t, 10, cfg.Split.Plan().Total)
}

// 补充覆盖: splitComma 与 atoi
func TestSplitCommaAtoi(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitComma("a, b , ,c"))
	assert.Nil(t, splitComma(""))
	v, err := atoi(" 10 ")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

// 补充覆盖: Defaults 与 cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	assert.Equal(t, "fs", d.Components.Reader)
	assert.Equal(t, 500000, d.Split.Plan().Total)
	require.NoError(t, d.Split.Plan().Check())

	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	assert.Equal(t, "abc", string(dst))
}

// 补充覆盖: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"空数据目录":   func(c *Config) { c.DataLocation = " " },
		"并发度为零":   func(c *Config) { c.Concurrency = 0 },
		"切分之和不等":  func(c *Config) { c.Split.Dev = intPtr(1) },
		"切分为负":    func(c *Config) { c.Split.Test = intPtr(-1); c.Split.Train = intPtr(450001) },
		"总量超出上限":  func(c *Config) { c.Capacity = intPtr(10) },
		"未知日志等级":  func(c *Config) { c.Logging.Level = "loud" },
		"未知摘要变换":  func(c *Config) { c.SummaryTransforms = []string{"shout"} },
		"未注册解析器":  func(c *Config) { c.Components.Parser = "regex" },
		"未注册存储":   func(c *Config) { c.Components.Store = "sqlite" },
		"未注册分词器":  func(c *Config) { c.Components.Tokenizer = "bpe" },
		"未注册读取器":  func(c *Config) { c.Components.Reader = "s3" },
		"未注册写入器":  func(c *Config) { c.Components.Writer = "s3" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultTemplateConfig()
			mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contract.ErrConfiguration), "%v", err)
		})
	}

	// 上限关闭时允许任意总量
	cfg := DefaultTemplateConfig()
	cfg.Capacity = intPtr(-1)
	require.NoError(t, Validate(cfg))
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultTemplateConfig()
	cfg.DataLocation = dir
	cfg.Capacity = intPtr(8)
	cfg.Split = Split{Total: intPtr(8), Test: intPtr(3), Train: intPtr(3), Dev: intPtr(2)}
	cfg.Seed = 9
	cfg.Concurrency = 2
	cfg.SkipDebugOutput = true

	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.NotNil(t, comp.Source)
	assert.NotNil(t, comp.Store)
	assert.NotNil(t, comp.Parser)
	assert.NotNil(t, comp.Tokenizer)
	assert.NotNil(t, comp.Writer)
	assert.Equal(t, 8, set.Capacity)
	assert.Equal(t, 8, set.Plan.Total)
	assert.Equal(t, uint64(9), set.Seed)
	assert.Equal(t, 2, set.Concurrency)
	assert.True(t, set.SkipDebugOutput)
	require.Len(t, set.Transforms, 4)
	assert.Equal(t, "strip_markup", set.Transforms[0].Name)
}

func TestAssembleOptionsError(t *testing.T) {
	for _, comp := range []string{"reader", "writer", "parser", "store", "tokenizer"} {
		t.Run(comp, func(t *testing.T) {
			cfg := DefaultTemplateConfig()
			cfg.DataLocation = t.TempDir()
			bad := json.RawMessage(`{"unknown":1}`)
			switch comp {
			case "reader":
				cfg.Options.Reader = bad
			case "writer":
				cfg.Options.Writer = bad
			case "parser":
				cfg.Options.Parser = bad
			case "store":
				cfg.Options.Store = bad
			case "tokenizer":
				cfg.Options.Tokenizer = bad
			}
			_, _, err := Assemble(cfg)
			require.ErrorIs(t, err, contract.ErrConfiguration)
			assert.Contains(t, err.Error(), "options."+comp)
		})
	}
}

// 模板可原样写出并回读
func TestTemplateRoundTrip(t *testing.T) {
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, Validate(Merge(Defaults(), cfg)))
	assert.Equal(t, ".", cfg.DataLocation)
}
