package registry

// Source 提供一份服务快照
type Source interface {
	GetAll() []Service
}

// Lookup 按类型和池查询服务
type Lookup interface {
	GetInPool(typ, pool string) []Service
}

// View 动态与静态存储的合并视图，每次调用都基于两份当前快照重新计算，不做缓存
type View struct {
	dynamic Source
	static  Source
}

var _ Lookup = (*View)(nil)

// NewView 创建合并视图
func NewView(dynamic, static Source) *View {
	return &View{dynamic: dynamic, static: static}
}

// GetAll 所有服务
func (v *View) GetAll() []Service {
	return Union(v.dynamic.GetAll(), v.static.GetAll())
}

// Get 指定类型的服务
func (v *View) Get(typ string) []Service {
	return Union(FilterByType(v.dynamic.GetAll(), typ), FilterByType(v.static.GetAll(), typ))
}

// GetInPool 指定类型和池的服务
func (v *View) GetInPool(typ, pool string) []Service {
	return Union(
		FilterByTypeAndPool(v.dynamic.GetAll(), typ, pool),
		FilterByTypeAndPool(v.static.GetAll(), typ, pool),
	)
}
