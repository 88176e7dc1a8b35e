package metrics

import "strconv"

// Label 指标标签
//
// 标签值应当是低基数的，例如 pool、route、operation；
// 不要把 node_id、service_id 这类无限增长的值作为标签。
type Label struct {
	Key   string
	Value string
}

// L 构造一个 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// 常用标签
const (
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
	LabelStore       = "store"
)

const (
	OperationHTTPServer = "http.server"

	OutcomeSuccess = "success"
	OutcomeError   = "error"

	UnknownRoute = "unknown"
)

// HTTPStatusClass 返回 1xx/2xx/3xx/4xx/5xx，非法状态码返回 unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 2xx/3xx 视为成功
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}

// Outcome 根据 error 返回 success/error
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
