package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（供上层 errors.Is 判定与 diag.Classify 汇总）。
var (
	// ErrDataNotFound: 输入文件缺失或不可读；整次运行中止，不产生输出。
	ErrDataNotFound = errors.New("data not found")
	// ErrParseFailure: 单条代码片段无法解析为独立声明；逐条可恢复（丢弃 + 计数）。
	ErrParseFailure = errors.New("parse failure")
	// ErrIO: 输出目录创建或文件写出失败；运行在该阶段中止，已写出的文件保留。
	ErrIO = errors.New("io error")
	// ErrConfiguration: 切分大小之和不等于总量，或总量超过可用记录数；须在写任何文件前发现。
	ErrConfiguration = errors.New("configuration error")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

// LengthMismatchError: 代码与摘要两个序列长度不一致。
type LengthMismatchError struct {
	Codes     int
	Summaries int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("length mismatch: %d code fragments vs %d summaries", e.Codes, e.Summaries)
}

// Unwrap 使 errors.Is(err, ErrInvariantViolation) 成立。
func (e *LengthMismatchError) Unwrap() error { return ErrInvariantViolation }
