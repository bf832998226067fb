package registry

import (
	"bytes"
	"encoding/json"

	"jdprep/pkg/contract"
	tsp "jdprep/plugins/parser/treesitter"
	rfs "jdprep/plugins/reader/filesystem"
	sjson "jdprep/plugins/store/jsonfile"
	tsub "jdprep/plugins/tokenizer/subtoken"
	wfs "jdprep/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收数据目录与原样 JSON Options。
type NewReader func(root string, raw json.RawMessage) (contract.Source, error)

// NewWriter 工厂签名：接收输出根目录与原样 JSON Options。
type NewWriter func(root string, raw json.RawMessage) (contract.Writer, error)

// NewParser 工厂签名：接收原样 JSON Options。
type NewParser func(raw json.RawMessage) (contract.CodeParser, error)

// NewStore 工厂签名：接收原样 JSON Options。
type NewStore func(raw json.RawMessage) (contract.Store, error)

// NewTokenizer 工厂签名：接收原样 JSON Options。
type NewTokenizer func(raw json.RawMessage) (contract.Tokenizer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 以数据目录为根的文件系统 Source
	"fs": func(root string, raw json.RawMessage) (contract.Source, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(root, &opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(root string, raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(root, &opts)
	},
}

// Parser 工厂注册表。
var Parser = map[string]NewParser{
	// treesitter: Tree-sitter Java 语法 + LRU 结果缓存
	"treesitter": func(raw json.RawMessage) (contract.CodeParser, error) {
		var opts tsp.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tsp.New(&opts)
	},
}

// Store 工厂注册表。
var Store = map[string]NewStore{
	// json: functions.json / comments.json 键值对象
	"json": func(raw json.RawMessage) (contract.Store, error) {
		var opts sjson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sjson.New(&opts), nil
	},
}

// Tokenizer 工厂注册表。
var Tokenizer = map[string]NewTokenizer{
	// subtoken: 驼峰拆分 + 标点分隔 + 小写
	"subtoken": func(raw json.RawMessage) (contract.Tokenizer, error) {
		var opts tsub.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tsub.New(&opts), nil
	},
}
