package testdata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "jdprep/internal/config"
	"jdprep/internal/pipeline"
	"jdprep/pkg/contract"
)

// wantSummaries: files/ 中 8 条可解析记录归一化后的摘要。
var wantSummaries = []string{
	"returns the sum of  a  and b.",
	"checks whether the list is empty.",
	"gets the name of this user.",
	"builds a string representation.",
	"removes all elements from the cache.",
	"finds the maximum value  or  1 .",
	"returns the number of entries.",
	"closes the stream   releases resources.",
}

// dataDir 将 files/ 中的输入复制到临时数据目录。
func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"functions.json", "comments.json"} {
		b, err := os.ReadFile(filepath.Join("files", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
	}
	return dir
}

func baseConfig(dir string) cfgpkg.Config {
	cfg := cfgpkg.Merge(cfgpkg.Defaults(), cfgpkg.DefaultTemplateConfig())
	total, test, train, dev := 8, 3, 3, 2
	capa := 8
	cfg.DataLocation = dir
	cfg.Capacity = &capa
	cfg.Split = cfgpkg.Split{Total: &total, Test: &test, Train: &train, Dev: &dev}
	cfg.Seed = 42
	cfg.Concurrency = 4
	cfg.Logging.Level = "error"
	cfg.Options.Writer = json.RawMessage(`{"atomic":false}`)
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) (pipeline.Result, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg)
	require.NoError(t, err)
	return pipeline.Run(context.Background(), comp, set, nil)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := strings.TrimSuffix(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestE2ESuccess(t *testing.T) {
	dir := dataDir(t)
	res, err := runPipeline(t, baseConfig(dir))
	require.NoError(t, err)

	assert.Equal(t, 10, res.Loaded)
	assert.Equal(t, 8, res.Good)
	assert.Equal(t, 2, res.Bad)
	assert.Equal(t, 8, res.Final)
	assert.Equal(t, [3]int{3, 3, 2}, [3]int{res.Test, res.Train, res.Dev})

	var summaries []string
	for split, n := range map[string]int{"test": 3, "train": 3, "dev": 2} {
		codes := readLines(t, filepath.Join(dir, split, "code.original"))
		toks := readLines(t, filepath.Join(dir, split, "code.original_subtoken"))
		sums := readLines(t, filepath.Join(dir, split, "javadoc.original"))
		require.Len(t, codes, n, split)
		require.Len(t, toks, n, split)
		require.Len(t, sums, n, split)
		for i, c := range codes {
			assert.NotContains(t, c, "// sum")
			assert.NotContains(t, c, "/* field */")
			assert.NotContains(t, c, "drop everything")
			assert.NotContains(t, c, "broken")
			assert.Equal(t, strings.ToLower(toks[i]), toks[i])
			if strings.Contains(c, "getName") {
				assert.Contains(t, c, "/** Name getter. */")
				assert.Contains(t, toks[i], "get name")
			}
		}
		summaries = append(summaries, sums...)
	}
	want := append([]string(nil), wantSummaries...)
	sort.Strings(want)
	sort.Strings(summaries)
	assert.Equal(t, want, summaries)

	// 调试输出
	var methods struct {
		Methods []string `json:"methods"`
	}
	b, err := os.ReadFile(filepath.Join(dir, "methodsProcessed.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &methods))
	assert.Len(t, methods.Methods, 8)
	_, err = os.Stat(filepath.Join(dir, "summariesProcessed.json"))
	require.NoError(t, err)
}

func TestE2EReproducible(t *testing.T) {
	a, b := dataDir(t), dataDir(t)
	_, err := runPipeline(t, baseConfig(a))
	require.NoError(t, err)
	_, err = runPipeline(t, baseConfig(b))
	require.NoError(t, err)
	for _, split := range []string{"test", "train", "dev"} {
		for _, f := range []string{"code.original", "code.original_subtoken", "javadoc.original"} {
			assert.Equal(t, readLines(t, filepath.Join(a, split, f)), readLines(t, filepath.Join(b, split, f)), split+"/"+f)
		}
	}
}

func TestE2ESkipDebugOutput(t *testing.T) {
	dir := dataDir(t)
	cfg := baseConfig(dir)
	cfg.SkipDebugOutput = true
	_, err := runPipeline(t, cfg)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "methodsProcessed.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestE2ETotalExceedsAvailable(t *testing.T) {
	dir := dataDir(t)
	cfg := baseConfig(dir)
	capa, total, dev := -1, 9, 3
	cfg.Capacity = &capa
	cfg.Split.Total = &total
	cfg.Split.Dev = &dev
	_, err := runPipeline(t, cfg)
	require.ErrorIs(t, err, contract.ErrConfiguration)
	for _, split := range []string{"test", "train", "dev"} {
		_, err := os.Stat(filepath.Join(dir, split))
		assert.True(t, errors.Is(err, os.ErrNotExist), "%s 不应被创建", split)
	}
}

func TestE2EMissingData(t *testing.T) {
	_, err := runPipeline(t, baseConfig(t.TempDir()))
	require.ErrorIs(t, err, contract.ErrDataNotFound)
}
