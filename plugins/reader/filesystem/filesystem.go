package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"jdprep/pkg/contract"
)

// Options 为 FileSystem Source 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
}

// FileSystem 实现以数据目录为根的 contract.Source。
type FileSystem struct {
	root    string
	bufSize int
}

var _ contract.Source = (*FileSystem)(nil)

// New 创建 FileSystem Source；root 为数据目录。
func New(root string, opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	return &FileSystem{root: root, bufSize: b}
}

// Root 返回数据目录。
func (r *FileSystem) Root() string { return r.root }

// Open 打开 root 下的单个常规文件（允许指向常规文件的符号链接）。
// 缺失、不可读或非常规文件返回包裹 ErrDataNotFound 的错误，并带上完整路径。
func (r *FileSystem) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	p, err := r.resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrDataNotFound, p, err)
	}
	// 仅跟随到常规文件
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contract.ErrDataNotFound, p, err)
		}
		info = t
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s: not a regular file", contract.ErrDataNotFound, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrDataNotFound, p, err)
	}
	return newBufferedCloser(f, r.bufSize), nil
}

// resolve 将名称映射到 root 下的路径；拒绝绝对路径与 '..' 逃逸。
func (r *FileSystem) resolve(name string) (string, error) {
	id := string(contract.NormalizeArtifactID(name))
	if id == "." || id == "" {
		return "", fmt.Errorf("%w: empty name", contract.ErrPathInvalid)
	}
	if strings.HasPrefix(id, "/") || filepath.IsAbs(name) || id == ".." || strings.HasPrefix(id, "../") {
		return "", fmt.Errorf("%w: %q escapes data location", contract.ErrPathInvalid, name)
	}
	return filepath.Join(r.root, filepath.FromSlash(id)), nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
