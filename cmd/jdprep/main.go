package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	cfgpkg "jdprep/internal/config"
	"jdprep/internal/diag"
	"jdprep/internal/pipeline"
	"jdprep/pkg/contract"
)

var pipelineRun = pipeline.Run

// 位置参数为数据目录 DATA_DIR（可选，覆盖配置中的 data_location）。
// 退出码：0 成功；1 运行期失败；2 命令行用法错误；3 配置/装配失败。
func main() {
	os.Exit(run(os.Args[1:]))
}

// cliFlags 保存命令行取值；是否覆盖由 FlagSet.Changed 判定。
type cliFlags struct {
	config          string
	capacity        int
	total           int
	test            int
	train           int
	dev             int
	seed            uint64
	concurrency     int
	logLevel        string
	skipDebugOutput bool
	initDir         string
	status          bool
}

func newFlagSet(f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("jdprep", flag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fprintf(os.Stderr, "用法: jdprep [flags] [DATA_DIR]\n\n")
		fs.PrintDefaults()
	}
	fs.StringVarP(&f.config, "config", "c", "", "配置文件路径（.json/.yaml/.yml）；缺省读取 ./config.json（若存在）")
	fs.IntVar(&f.capacity, "capacity", 0, "过滤后保留的最大记录数（<=0 关闭上限）")
	fs.IntVar(&f.total, "total", 0, "切分总量（须等于 test+train+dev）")
	fs.IntVar(&f.test, "test", 0, "test 切分大小")
	fs.IntVar(&f.train, "train", 0, "train 切分大小")
	fs.IntVar(&f.dev, "dev", 0, "dev 切分大小")
	fs.Uint64Var(&f.seed, "seed", 0, "随机排列种子（0 表示每次运行不同）")
	fs.IntVarP(&f.concurrency, "concurrency", "j", 0, "解析并发度")
	fs.StringVar(&f.logLevel, "log-level", "", "日志等级 debug|info|warn|error")
	fs.BoolVar(&f.skipDebugOutput, "skip-debug-output", false, "不写 methodsProcessed.json / summariesProcessed.json")
	fs.StringVar(&f.initDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（不覆盖已存在文件）；形如 --init-config=DIR，不带值时默认当前目录")
	fs.Lookup("init-config").NoOptDefVal = "."
	fs.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	return fs
}

// overlay 仅收集显式给出的旗标，保证未给出的旗标不覆盖低优先级来源。
func (f *cliFlags) overlay(fs *flag.FlagSet, args []string) (cfgpkg.Config, error) {
	var over cfgpkg.Config
	if len(args) > 1 {
		return over, fmt.Errorf("%w: expected at most one DATA_DIR, got %d", contract.ErrConfiguration, len(args))
	}
	if len(args) == 1 {
		over.DataLocation = args[0]
	}
	set := func(name string, v int) *int {
		if !fs.Changed(name) {
			return nil
		}
		return &v
	}
	over.Capacity = set("capacity", f.capacity)
	over.Split = cfgpkg.Split{
		Total: set("total", f.total),
		Test:  set("test", f.test),
		Train: set("train", f.train),
		Dev:   set("dev", f.dev),
	}
	if fs.Changed("seed") {
		over.Seed = f.seed
	}
	if fs.Changed("concurrency") {
		if f.concurrency < 1 {
			return over, fmt.Errorf("%w: --concurrency must be >= 1", contract.ErrConfiguration)
		}
		over.Concurrency = f.concurrency
	}
	over.Logging.Level = f.logLevel
	over.SkipDebugOutput = f.skipDebugOutput
	return over, nil
}

func run(args []string) int {
	start := time.Now()
	corrID := genCorrID()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV；不存在时忽略）。
	_ = godotenv.Load(".env")
	logger := diag.NewLogger(corrID, "info")

	var f cliFlags
	fs := newFlagSet(&f)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fprintf(os.Stderr, "参数错误: %v\n", err)
		return 2
	}

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(f.initDir); initDir != "" {
		if err := initConfig(initDir); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "first error", &start)
			return 3
		}
		return 0
	}

	fail := func(prefix string, err error) int {
		fprintf(os.Stderr, "%s: %v\n", prefix, err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	// 配置来源：--config > JDPREP_CONFIG_FILE > ./config.json；JDPREP_CONFIG_JSON 为内联 JSON
	cfgJSON := []byte(os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"))
	cfgPath := f.config
	if cfgPath == "" {
		cfgPath = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if cfgPath == "" {
		if _, err := os.Stat("config.json"); err == nil {
			cfgPath = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	switch {
	case len(cfgJSON) > 0:
		base, err := cfgpkg.LoadJSON("", cfgJSON)
		if err != nil {
			return fail("配置解析失败", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	case cfgPath != "":
		base, err := cfgpkg.LoadFile(cfgPath)
		if err != nil {
			return fail("配置解析失败", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return fail("环境变量解析失败", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI, err := f.overlay(fs, fs.Args())
	if err != nil {
		return fail("参数错误", err)
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(os.Stderr, cfg)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return 3
	}

	// 使用最终配置中的日志级别重建 logger
	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" {
		logger = diag.NewLogger(corrID, lv)
	}

	if err := preflightCheckDataDir(cfg.DataLocation); err != nil {
		return fail("数据目录不可用", err)
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return fail("装配失败", err)
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(cfg.DataLocation)

	logger.DebugStart("config", "effective", map[string]string{
		"data_location": cfg.DataLocation,
		"capacity":      strconv.Itoa(set.Capacity),
		"split":         fmt.Sprintf("%d=%d+%d+%d", set.Plan.Total, set.Plan.Test, set.Plan.Train, set.Plan.Dev),
		"seed":          strconv.FormatUint(set.Seed, 10),
		"concurrency":   strconv.Itoa(set.Concurrency),
		"reader":        cfg.Components.Reader,
		"writer":        cfg.Components.Writer,
		"parser":        cfg.Components.Parser,
		"store":         cfg.Components.Store,
		"tokenizer":     cfg.Components.Tokenizer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := logger.Start("pipeline", "run")
	res, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "run", "error")
		if code != "" && code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		term.RunFinish(false, time.Since(start))
		// 切分总量超过可用记录属于配置错误
		if errors.Is(err, contract.ErrConfiguration) {
			return 3
		}
		return 1
	}
	t.FinishWithKV("run", int64(res.Final), summaryKV(res))
	diag.IncOp("pipeline", "run", "success")
	diag.ObserveDuration("pipeline", "run", time.Since(start).Milliseconds())
	logger.DebugEvent("pipeline", "", "metrics", metricsKV(diag.Snapshot()))
	term.RunFinish(true, time.Since(start))
	return 0
}

func summaryKV(r pipeline.Result) map[string]string {
	return map[string]string{
		"loaded":      strconv.Itoa(r.Loaded),
		"unpaired":    strconv.Itoa(r.Unpaired),
		"good":        strconv.Itoa(r.Good),
		"bad":         strconv.Itoa(r.Bad),
		"capped":      strconv.Itoa(r.Capped),
		"deduped":     strconv.Itoa(r.Deduped),
		"final":       strconv.Itoa(r.Final),
		"dropped":     strconv.Itoa(r.Dropped),
		"dropped_tok": strconv.Itoa(r.DroppedTok),
		"test":        strconv.Itoa(r.Test),
		"train":       strconv.Itoa(r.Train),
		"dev":         strconv.Itoa(r.Dev),
	}
}

// metricsKV 把本次运行的计数快照转成日志 kv。
func metricsKV(snap map[string]int64) map[string]string {
	kv := make(map[string]string, len(snap))
	for k, v := range snap {
		kv[k] = strconv.FormatInt(v, 10)
	}
	return kv
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		return err
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	return nil
}

// dotEnvKeys: .env 模板中列出的覆盖项（值留空表示未设置）。
var dotEnvKeys = [][]string{
	{"# 配置来源（可二选一）", "CONFIG_FILE", "CONFIG_JSON"},
	{"# 运行参数覆盖", "DATA_LOCATION", "CAPACITY", "SPLIT_TOTAL", "SPLIT_TEST", "SPLIT_TRAIN", "SPLIT_DEV",
		"SEED", "CONCURRENCY", "SUMMARY_TRANSFORMS", "SKIP_DEBUG_OUTPUT", "LOG_LEVEL"},
	{"# 组件选择", "COMPONENTS_READER", "COMPONENTS_WRITER", "COMPONENTS_PARSER", "COMPONENTS_STORE", "COMPONENTS_TOKENIZER"},
	{"# 组件 Options（原样 JSON）", "OPTIONS_READER_JSON", "OPTIONS_WRITER_JSON", "OPTIONS_PARSER_JSON", "OPTIONS_STORE_JSON", "OPTIONS_TOKENIZER_JSON"},
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
// 仅创建文件；不覆盖，不合并。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# jdprep .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值\n")
	b.WriteString("# 空值表示未设置。\n")
	for _, group := range dotEnvKeys {
		b.WriteString("\n" + group[0] + "\n")
		for _, k := range group[1:] {
			b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckDataDir: 启动前检查数据目录存在且可写（输出与输入同目录）。
func preflightCheckDataDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", contract.ErrDataNotFound, dir)
		}
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", contract.ErrPathInvalid, dir)
	}
	f, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func genCorrID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}
