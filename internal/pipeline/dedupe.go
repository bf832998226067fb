package pipeline

import "jdprep/pkg/contract"

// Dedupe 按摘要文本去重：首次出现者保留，顺序不变。
// 每次调用使用独立的 seen 集合；Tokens 随记录一起保留或丢弃。
// 返回新切片与丢弃条数。
func Dedupe(recs []contract.Record) ([]contract.Record, int) {
	seen := make(map[string]struct{}, len(recs))
	out := make([]contract.Record, 0, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.Summary]; dup {
			continue
		}
		seen[r.Summary] = struct{}{}
		out = append(out, r)
	}
	return out, len(recs) - len(out)
}
