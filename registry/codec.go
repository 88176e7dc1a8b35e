package registry

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/discovery/xerrors"
)

// 行值编码方式
const (
	SerializerJSON    = "json"
	SerializerMsgpack = "msgpack"
)

// Serializer 行值的编解码器
type Serializer interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewSerializer 按名称返回编解码器
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case SerializerJSON, "":
		return jsonSerializer{}, nil
	case SerializerMsgpack:
		return msgpackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrInvalidConfig, "unknown serializer %q", name)
	}
}

type jsonSerializer struct{}

func (jsonSerializer) Name() string                       { return SerializerJSON }
func (jsonSerializer) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackSerializer struct{}

func (msgpackSerializer) Name() string                       { return SerializerMsgpack }
func (msgpackSerializer) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackSerializer) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// dynamicRecord 动态存储中一行的内容，NodeID 即行主键，不重复存储
type dynamicRecord struct {
	Pool     string                `json:"pool" msgpack:"pool"`
	Location string                `json:"location" msgpack:"location"`
	Services []ServiceAnnouncement `json:"services" msgpack:"services"`
}

// services 投影为读模型
func (r *dynamicRecord) services(nodeID string) []Service {
	out := make([]Service, 0, len(r.Services))
	for _, s := range r.Services {
		out = append(out, Service{
			ID:         s.ID,
			NodeID:     nodeID,
			Type:       s.Type,
			Pool:       r.Pool,
			Location:   r.Location,
			Properties: s.Properties,
		})
	}
	return out
}
