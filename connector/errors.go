package connector

import "github.com/ceyewan/discovery/xerrors"

var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrConnection   = xerrors.New("connector: connection failed")
	ErrConfig       = xerrors.New("connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
)

func configError(kind string, err error) error {
	return xerrors.Wrapf(xerrors.Join(ErrConfig, err), "invalid %s config", kind)
}

func connectionError(kind, name string, err error) error {
	return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "%s connector[%s]", kind, name)
}

func healthError(kind, name string, err error) error {
	return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "%s connector[%s]", kind, name)
}
