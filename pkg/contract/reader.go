package contract

import (
	"context"
	"io"
)

// Source: 输入源抽象（以数据目录为根的只读文件访问）。
// 约束：
// 1) 按名称打开单个文件，调用方负责 Close；
// 2) 文件缺失/不可读返回包裹 ErrDataNotFound 的错误，并带上文件名；
// 3) 不做解码/业务解析，仅提供字节流；
// 4) 不在内部起并发。
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
