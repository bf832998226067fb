package contract

import (
	"context"
	"io"
)

// ArtifactID: 持久化工件标识（相对数据目录的 '/' 分隔路径，例如 "test/code.original"）。
type ArtifactID string

// Writer: 将工件以流式方式持久化到目标介质（文件系统等）。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传，不读取/修改业务内容；
//  3. 按需创建父目录；
//  4. ctx 取消需尽快返回；
//  5. 错误包裹 ErrIO 直接上抛（不做重试/回滚）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
