package contract

import "context"

// Store: 语料存取（CorpusStore）。
// Load: 通过 Source 读取原始 (code, summary) 两个键值 JSON 并展开为对齐记录；
// Save: 通过 Writer 写出处理后的代码与摘要序列（调试用途）。
// 约束：不做业务清洗；部分写出不回滚。
type Store interface {
	Load(ctx context.Context, src Source) ([]Record, error)
	Save(ctx context.Context, w Writer, recs []Record) error
}
