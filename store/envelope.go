package store

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/discovery/xerrors"
)

// envelope 不支持附加列的后端（Etcd、Badger）把写入时间和值一起编码
type envelope struct {
	WriteTime int64  `msgpack:"t"`
	Value     []byte `msgpack:"v"`
}

func encodeEnvelope(writeTime int64, value []byte) ([]byte, error) {
	return msgpack.Marshal(&envelope{WriteTime: writeTime, Value: value})
}

func decodeEnvelope(key string, data []byte) (Row, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Row{}, xerrors.Wrapf(xerrors.Join(ErrCorruptRow, err), "key %q", key)
	}
	return Row{Key: key, Value: env.Value, WriteTime: env.WriteTime}, nil
}
