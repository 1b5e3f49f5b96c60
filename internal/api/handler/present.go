package handler

import (
	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/service"
)

func toAccessResponse(a *model.VipAccess) *dto.AccessResponse {
	resp := &dto.AccessResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		Level:       a.Level,
		Category:    a.Category,
		Status:      a.Status,
		Price:       a.Price.StringFixed(2),
		HeldAmount:  a.HeldAmount.StringFixed(2),
		ReviewNote:  a.ReviewNote,
		RequestedAt: a.RequestedAt,
		ApprovedAt:  a.ApprovedAt,
		RejectedAt:  a.RejectedAt,
		CompletedAt: a.CompletedAt,
	}
	if a.ComboEnabled {
		resp.Combo = &dto.ComboSnapshot{
			Position:       a.ComboPosition,
			Multiplier:     a.ComboMultiplier.String(),
			DepositPercent: a.ComboDepositPercent.String(),
		}
	}
	return resp
}

func toComboResponse(c *model.ComboOverride) *dto.ComboResponse {
	return &dto.ComboResponse{
		ID:              c.ID,
		AccessID:        c.AccessID,
		Position:        c.Position,
		Mode:            c.Mode,
		Multiplier:      c.Multiplier.String(),
		DepositPercent:  c.DepositPercent.String(),
		VipPricePercent: c.VipPricePercent.String(),
		IsActive:        c.IsActive,
		Completed:       c.Completed,
		CompletedAt:     c.CompletedAt,
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt,
	}
}

func toTransactionResponse(t *model.BalanceTransaction) *dto.TransactionResponse {
	return &dto.TransactionResponse{
		ID:           t.ID,
		Type:         t.Type,
		Amount:       t.Amount.StringFixed(2),
		BalanceAfter: t.BalanceAfter.StringFixed(2),
		AccessID:     t.AccessID,
		Note:         t.Note,
		CreatedAt:    t.CreatedAt,
	}
}

func toCatalogItem(e progression.CatalogEntry) *dto.CatalogItem {
	return &dto.CatalogItem{
		Position:             e.Position,
		ProductID:            e.ProductID,
		Name:                 e.Name,
		Price:                e.Price.StringFixed(2),
		CommissionPercentage: e.CommissionPercent.String(),
		QuantityMultiplier:   e.Units(),
	}
}

func toProgress(p progression.Progress) dto.TaskProgress {
	return dto.TaskProgress{
		Position:        p.Position,
		PurchasedCount:  p.PurchasedCount,
		TotalTasks:      p.TotalTasks,
		TotalCommission: p.TotalCommission.StringFixed(2),
		Completed:       p.Completed,
	}
}

func toPurchaseResponse(o *service.PurchaseOutcome) *dto.PurchaseResponse {
	progress := toProgress(o.Progress)
	resp := &dto.PurchaseResponse{
		Status:   o.Status,
		AccessID: o.AccessID,
		Balance:  o.Balance.StringFixed(2),
		Progress: &progress,
	}
	if q := o.Quote; q != nil {
		resp.TaskNumber = q.TaskNumber
		resp.Product = toCatalogItem(q.Entry)
		resp.Commission = q.Commission.StringFixed(2)
		resp.ComboBonus = q.ComboBonus.StringFixed(2)
		resp.IsCombo = q.IsCombo()
	}
	return resp
}

func toNextTask(q *progression.Quote) *dto.NextTask {
	if q == nil {
		return nil
	}
	return &dto.NextTask{
		TaskNumber: q.TaskNumber,
		Product:    toCatalogItem(q.Entry),
		Required:   q.Required.StringFixed(2),
		Commission: q.Commission.StringFixed(2),
		IsCombo:    q.IsCombo(),
	}
}

// toCatalogItems 按购买顺序推算每个条目对应的任务序号，用于标记连单位置
func toCatalogItems(st *service.TaskState) []dto.CatalogItem {
	bought := make(map[int64]int, len(st.Records))
	for _, r := range st.Records {
		bought[r.ProductID] += r.Quantity
	}

	items := make([]dto.CatalogItem, 0, len(st.Catalog))
	taskNumber := 1
	for _, e := range st.Catalog {
		item := toCatalogItem(e)
		item.Purchased = bought[e.ProductID] > 0
		item.IsNext = !st.Progress.Completed && e.Position == st.Progress.Position+1
		if st.Rules != nil {
			_, item.IsCombo = st.Rules.RuleFor(taskNumber)
		}
		items = append(items, *item)
		taskNumber += e.Units()
	}
	return items
}
