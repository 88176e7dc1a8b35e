package registry

import (
	"context"

	"github.com/ceyewan/discovery/xerrors"
)

// NodeInfo 当前进程所在节点的身份
type NodeInfo struct {
	Environment string `mapstructure:"environment"`
	NodeID      string `mapstructure:"node_id"`
	Pool        string `mapstructure:"pool"`
	Location    string `mapstructure:"location"`
}

// DefaultLocation 未指定 location 时使用的占位值
func DefaultLocation(id string) string {
	return "/somewhere/" + id
}

// LocalClient 进程内的发现客户端，直接读写本地存储，不经过 HTTP
type LocalClient struct {
	dynamic *DynamicStore
	lookup  Lookup
	node    NodeInfo
}

// NewLocalClient 创建本地客户端，lookup 通常是带缓存的视图
func NewLocalClient(dynamic *DynamicStore, lookup Lookup, node NodeInfo) (*LocalClient, error) {
	if dynamic == nil || lookup == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "dynamic store and lookup are required")
	}
	if node.NodeID == "" || node.Environment == "" || node.Pool == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "node environment, id and pool are required")
	}
	if node.Location == "" {
		node.Location = DefaultLocation(node.NodeID)
	}
	return &LocalClient{dynamic: dynamic, lookup: lookup, node: node}, nil
}

// Node 返回节点信息
func (c *LocalClient) Node() NodeInfo {
	return c.node
}

// Announce 以本节点身份公告 services，覆盖本节点之前的公告
func (c *LocalClient) Announce(ctx context.Context, services []ServiceAnnouncement) error {
	if services == nil {
		services = []ServiceAnnouncement{}
	}
	ann := DynamicAnnouncement{
		Environment: c.node.Environment,
		Pool:        c.node.Pool,
		Location:    c.node.Location,
		Services:    services,
	}
	if err := ann.Validate(); err != nil {
		return err
	}
	_, err := c.dynamic.Put(ctx, c.node.NodeID, ann)
	return err
}

// Services 查询指定类型和池的服务
func (c *LocalClient) Services(typ, pool string) Services {
	return Services{Environment: c.node.Environment, Services: c.lookup.GetInPool(typ, pool)}
}
