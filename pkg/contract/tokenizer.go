package contract

// Tokenizer: 将单个代码片段转换为空白分隔的单行 token 串。
// 约束：纯计算、无 I/O、确定性；输出不含换行。
type Tokenizer interface {
	Tokenize(code string) string
}
