package registry

import "github.com/ceyewan/discovery/xerrors"

var (
	// ErrAlreadyInitialized 存储的刷新循环已经启动
	ErrAlreadyInitialized = xerrors.New("registry: store already initialized")

	// ErrClosed 存储已关闭
	ErrClosed = xerrors.New("registry: store is closed")

	// ErrInvalidAnnouncement 公告缺少必填字段
	ErrInvalidAnnouncement = xerrors.New("registry: invalid announcement")

	// ErrInvalidConfig 配置不合法
	ErrInvalidConfig = xerrors.New("registry: invalid config")
)

func invalid(format string, args ...any) error {
	return xerrors.WithCode(xerrors.Wrapf(ErrInvalidAnnouncement, format, args...), xerrors.CodeInvalidInput)
}
