package progression

import (
	"github.com/shopspring/decimal"
)

// PurchaseRecord 某个权限实例下某个商品的购买记录
type PurchaseRecord struct {
	ProductID  int64
	Quantity   int
	Commission decimal.Decimal
}

// Progress 由目录和购买记录推导出的进度，不单独存储
type Progress struct {
	Position        int // 已连续完成的目录位置数
	PurchasedCount  int // 已计入的任务数（累计数量）
	TotalTasks      int
	TotalCommission decimal.Decimal
	Completed       bool
}

// NextTaskNumber 下一次购买对应的任务序号，连单规则按此序号查找
func (p Progress) NextTaskNumber() int {
	return p.PurchasedCount + 1
}

// Remaining 剩余任务数
func (p Progress) Remaining() int {
	if p.PurchasedCount >= p.TotalTasks {
		return 0
	}
	return p.TotalTasks - p.PurchasedCount
}

// ComputeProgress 推导进度。records 必须只属于同一个权限实例。
// 空目录永远不会被判定为完成。
func ComputeProgress(catalog Catalog, records []PurchaseRecord) Progress {
	byProduct := make(map[int64]int, len(records))
	total := decimal.Zero
	purchased := 0
	for _, r := range records {
		byProduct[r.ProductID] += r.Quantity
		purchased += r.Quantity
		total = total.Add(r.Commission)
	}

	position := 0
	for _, entry := range catalog {
		if byProduct[entry.ProductID] < 1 {
			break
		}
		position++
	}

	return Progress{
		Position:        position,
		PurchasedCount:  purchased,
		TotalTasks:      len(catalog),
		TotalCommission: total,
		Completed:       len(catalog) > 0 && purchased >= len(catalog),
	}
}

// NextEntry 下一个待购买的目录条目
func NextEntry(catalog Catalog, p Progress) (CatalogEntry, bool) {
	if p.Completed {
		return CatalogEntry{}, false
	}
	return catalog.At(p.Position + 1)
}
