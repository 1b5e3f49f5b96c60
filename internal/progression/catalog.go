// Package progression 实现 VIP 任务序列的纯计算逻辑：目录、连单规则、进度推导与报价。
// 包内不访问存储，所有输入由调用方在同一事务内读取后传入。
package progression

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CatalogEntry 任务序列中的一个位置
type CatalogEntry struct {
	Position           int // 从 1 开始
	ProductID          int64
	Name               string
	Price              decimal.Decimal
	CommissionPercent  decimal.Decimal
	QuantityMultiplier int
}

// Units 每次购买计入的任务数
func (e CatalogEntry) Units() int {
	if e.QuantityMultiplier < 1 {
		return 1
	}
	return e.QuantityMultiplier
}

// Catalog 有序任务目录
type Catalog []CatalogEntry

// BuildCatalog 按名称升序（同名按商品ID）排序后截取前 limit 个，重新编号位置。
// 可用商品不足 limit 时按实际数量返回，由调用方记录告警。
func BuildCatalog(products []CatalogEntry, limit int) (Catalog, error) {
	if limit <= 0 {
		return nil, &ConfigurationError{Message: "等级未配置任务数量"}
	}
	if len(products) == 0 {
		return nil, &ConfigurationError{Message: "分类下没有可用商品"}
	}

	sorted := make([]CatalogEntry, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ProductID < sorted[j].ProductID
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	for i := range sorted {
		sorted[i].Position = i + 1
	}
	return Catalog(sorted), nil
}

// Len 序列长度
func (c Catalog) Len() int {
	return len(c)
}

// At 按位置取条目（位置从 1 开始）
func (c Catalog) At(position int) (CatalogEntry, bool) {
	if position < 1 || position > len(c) {
		return CatalogEntry{}, false
	}
	return c[position-1], true
}

// Shortfall 目录比等级要求少了多少个位置
func (c Catalog) Shortfall(required int) int {
	if len(c) >= required {
		return 0
	}
	return required - len(c)
}

// TaskNumbers 每个条目被购买时对应的任务序号。数量倍数商品会占用后续序号，
// 累计任务数达到目录长度即完成，之后的条目不再出现。
func (c Catalog) TaskNumbers() []int {
	numbers := make([]int, 0, len(c))
	next := 1
	for _, e := range c {
		if next > len(c) {
			break
		}
		numbers = append(numbers, next)
		next += e.Units()
	}
	return numbers
}

// Reachable 该任务序号是否会作为某次购买的序号出现
func (c Catalog) Reachable(taskNumber int) bool {
	for _, n := range c.TaskNumbers() {
		if n == taskNumber {
			return true
		}
	}
	return false
}
