package config

import (
	"encoding/json"

	"jdprep/internal/pipeline"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 数据目录为当前目录，组件名采用仓库内置实现，Options 列出全部键。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.DataLocation = "."
	cfg.SummaryTransforms = pipeline.DefaultTransformNames()
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	cfg.Options.Parser = json.RawMessage(`{
  "cache_size": 4096
}`)
	cfg.Options.Store = json.RawMessage(`{
  "functions_file": "functions.json",
  "comments_file": "comments.json",
  "methods_out": "methodsProcessed.json",
  "summaries_out": "summariesProcessed.json",
  "align_by_id": false,
  "indent": 4
}`)
	// subtoken 当前无配置项，保持空对象
	cfg.Options.Tokenizer = json.RawMessage(`{}`)
	return cfg
}
