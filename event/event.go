// Package event 记录注册中心的审计事件。
//
// 每个 HTTP 请求处理完成后生成一个或多个 Event，Recorder 按启用列表过滤后
// 交给 Publisher 投递。支持三种投递方式：
//
//   - log：写入结构化日志
//   - nats：JSON 编码后发布到 NATS subject
//   - kafka：JSON 编码后异步写入 Kafka topic
//
// 投递失败只记录日志，不影响请求本身的结果。
package event

import (
	"strings"
	"time"

	"github.com/ceyewan/discovery/xerrors"
)

// Type 事件类型
type Type string

const (
	DynamicAnnouncement Type = "DynamicAnnouncement"
	DynamicDelete       Type = "DynamicDelete"
	StaticAnnouncement  Type = "StaticAnnouncement"
	StaticDelete        Type = "StaticDelete"
	StaticList          Type = "StaticList"
	ServiceQuery        Type = "ServiceQuery"
)

// AllTypes 返回全部事件类型
func AllTypes() []Type {
	return []Type{DynamicAnnouncement, DynamicDelete, StaticAnnouncement, StaticDelete, StaticList, ServiceQuery}
}

// Event 一次审计记录，未使用的字段保持零值
type Event struct {
	Type           Type              `json:"type"`
	Timestamp      time.Time         `json:"timestamp"`
	DurationMillis int64             `json:"durationMillis"`
	Success        bool              `json:"success"`
	RemoteAddress  string            `json:"remoteAddress,omitempty"`
	Environment    string            `json:"environment,omitempty"`
	NodeID         string            `json:"nodeId,omitempty"`
	ServiceID      string            `json:"serviceId,omitempty"`
	ServiceType    string            `json:"serviceType,omitempty"`
	Pool           string            `json:"pool,omitempty"`
	Location       string            `json:"location,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	ResultCount    int               `json:"resultCount,omitempty"`
}

// ParseTypes 解析启用列表。"*" 表示全部，空串表示全部关闭，
// 其余按逗号或空白分隔，未知名称返回错误。
func ParseTypes(s string) (map[Type]struct{}, error) {
	enabled := make(map[Type]struct{})
	s = strings.TrimSpace(s)
	if s == "*" {
		for _, t := range AllTypes() {
			enabled[t] = struct{}{}
		}
		return enabled, nil
	}

	known := make(map[string]Type)
	for _, t := range AllTypes() {
		known[string(t)] = t
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		t, ok := known[f]
		if !ok {
			return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "event: unknown event type %q", f)
		}
		enabled[t] = struct{}{}
	}
	return enabled, nil
}
