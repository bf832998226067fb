package pipeline

import "jdprep/pkg/contract"

// Limit 从尾部截断到至多 max 条；不重排、不增长。max<=0 关闭上限。
// 返回的切片与输入共享底层数组。
func Limit(recs []contract.Record, max int) []contract.Record {
	if max <= 0 || len(recs) <= max {
		return recs
	}
	return recs[:max]
}
