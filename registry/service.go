// Package registry 实现服务发现注册中心的公告存储与查询。
//
// 节点通过动态公告声明自己运行的服务，公告带 TTL，需要节点周期性续约；
// 运维人员可以登记不过期的静态服务。两类存储都把持久化的行定期重载为
// 不可变的内存快照，查询只读快照，从不访问后端：
//
//	rows, _ := store.NewSQL(db, store.TableDynamic)
//	dynamic, _ := registry.NewDynamicStore(rows, cfg, registry.WithLogger(logger))
//	_ = dynamic.Start()
//	defer dynamic.Close()
//
//	view := registry.NewView(dynamic, static)
//	services := view.GetInPool("storage", "general")
//
// 查询结果最多滞后一个刷新周期，注册中心不提供跨节点的一致性。
package registry

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ServiceAnnouncement 节点公告中的单个服务
type ServiceAnnouncement struct {
	ID         string            `json:"id" msgpack:"id"`
	Type       string            `json:"type" msgpack:"type"`
	Properties map[string]string `json:"properties,omitempty" msgpack:"properties,omitempty"`
}

// DynamicAnnouncement 节点对自身所运行服务的公告，按 NodeID 整体覆盖写入
type DynamicAnnouncement struct {
	Environment string                `json:"environment"`
	Pool        string                `json:"pool"`
	Location    string                `json:"location,omitempty"`
	Services    []ServiceAnnouncement `json:"services"`
}

// Validate 检查必填字段
func (a *DynamicAnnouncement) Validate() error {
	switch {
	case a == nil:
		return invalid("announcement is nil")
	case a.Environment == "":
		return invalid("environment is required")
	case a.Pool == "":
		return invalid("pool is required")
	case a.Services == nil:
		return invalid("services is required")
	}
	for i, s := range a.Services {
		if s.ID == "" {
			return invalid("services[%d].id is required", i)
		}
		if s.Type == "" {
			return invalid("services[%d].type is required", i)
		}
	}
	return nil
}

// StaticAnnouncement 静态服务的注册请求，服务 ID 由服务端生成
type StaticAnnouncement struct {
	Environment string            `json:"environment"`
	Type        string            `json:"type"`
	Pool        string            `json:"pool"`
	Location    string            `json:"location,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Validate 检查必填字段
func (a *StaticAnnouncement) Validate() error {
	switch {
	case a == nil:
		return invalid("announcement is nil")
	case a.Environment == "":
		return invalid("environment is required")
	case a.Type == "":
		return invalid("type is required")
	case a.Pool == "":
		return invalid("pool is required")
	}
	return nil
}

// Service 统一的读模型。静态服务的 NodeID 通常为空。
//
// 两个 Service 所有字段相等（Properties 按 map 比较）即视为同一个服务。
type Service struct {
	ID         string            `json:"id" msgpack:"id"`
	NodeID     string            `json:"nodeId,omitempty" msgpack:"node_id,omitempty"`
	Type       string            `json:"type" msgpack:"type"`
	Pool       string            `json:"pool" msgpack:"pool"`
	Location   string            `json:"location" msgpack:"location"`
	Properties map[string]string `json:"properties" msgpack:"properties"`
}

// Key 返回用于去重的规范化字符串，值相等的 Service 得到相同的 Key。
// 每个字段都带长度前缀，字段内容中出现任何字节都不会与分隔产生歧义。
func (s Service) Key() string {
	var b strings.Builder
	for _, f := range []string{s.ID, s.NodeID, s.Type, s.Pool, s.Location} {
		writeField(&b, f)
	}
	for _, k := range slices.Sorted(maps.Keys(s.Properties)) {
		writeField(&b, k)
		writeField(&b, s.Properties[k])
	}
	return b.String()
}

func writeField(b *strings.Builder, f string) {
	b.WriteString(strconv.Itoa(len(f)))
	b.WriteByte(':')
	b.WriteString(f)
}

// Equal 值相等
func (s Service) Equal(o Service) bool {
	return s.ID == o.ID &&
		s.NodeID == o.NodeID &&
		s.Type == o.Type &&
		s.Pool == o.Pool &&
		s.Location == o.Location &&
		maps.Equal(s.Properties, o.Properties)
}

// Services 查询接口的响应
type Services struct {
	Environment string    `json:"environment"`
	Services    []Service `json:"services"`
}

// FilterByType 返回 Type 等于 typ 的服务
func FilterByType(services []Service, typ string) []Service {
	return filter(services, func(s *Service) bool { return s.Type == typ })
}

// FilterByTypeAndPool 返回 Type 与 Pool 都匹配的服务
func FilterByTypeAndPool(services []Service, typ, pool string) []Service {
	return filter(services, func(s *Service) bool { return s.Type == typ && s.Pool == pool })
}

func filter(services []Service, match func(*Service) bool) []Service {
	out := make([]Service, 0)
	for i := range services {
		if match(&services[i]) {
			out = append(out, services[i])
		}
	}
	return out
}

// Union 按值相等合并多个集合，保留首次出现的顺序
func Union(sets ...[]Service) []Service {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	seen := make(map[string]struct{}, n)
	out := make([]Service, 0, n)
	for _, set := range sets {
		for _, s := range set {
			k := s.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
