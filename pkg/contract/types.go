package contract

// Record: 一条对齐记录（代码片段 + 摘要 [+ 分词视图]）。
// 约束：
// - 语料以 []Record 表示，任何过滤/去重都是对整条记录的一次结构性删除，三个视图不可能错位；
// - Code 为原始（或去注释后的）源码文本；
// - Summary 为原始（或归一化后的）文档注释文本；
// - Tokens 在分词阶段之前为空，之后随记录一起移动。
type Record struct {
	Code    string
	Summary string
	Tokens  string
}

// Codes 返回代码视图（按记录顺序）。
func Codes(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Code
	}
	return out
}

// Summaries 返回摘要视图（按记录顺序）。
func Summaries(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Summary
	}
	return out
}

// Zip 将两个位置对齐的序列合并为记录；长度不一致时返回 ErrInvariantViolation。
func Zip(codes, summaries []string) ([]Record, error) {
	if len(codes) != len(summaries) {
		return nil, &LengthMismatchError{Codes: len(codes), Summaries: len(summaries)}
	}
	out := make([]Record, len(codes))
	for i := range codes {
		out[i] = Record{Code: codes[i], Summary: summaries[i]}
	}
	return out, nil
}
