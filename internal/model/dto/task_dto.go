package dto

// PurchaseResponse 一次购买的结果，status: purchased, completed, no_active_access
type PurchaseResponse struct {
	Status     string        `json:"status"`
	AccessID   int64         `json:"access_id"`
	TaskNumber int           `json:"task_number,omitempty"`
	Product    *CatalogItem  `json:"product,omitempty"`
	Commission string        `json:"commission,omitempty"`
	ComboBonus string        `json:"combo_bonus,omitempty"`
	IsCombo    bool          `json:"is_combo"`
	Balance    string        `json:"balance,omitempty"`
	Progress   *TaskProgress `json:"progress,omitempty"`
}

// InsufficientFundsData 余额不足时的附加数据
type InsufficientFundsData struct {
	Required  string `json:"required"`
	Current   string `json:"current"`
	Shortfall string `json:"shortfall"`
}

// TaskProgress 任务进度
type TaskProgress struct {
	Position        int    `json:"position"`
	PurchasedCount  int    `json:"purchased_count"`
	TotalTasks      int    `json:"total_tasks"`
	TotalCommission string `json:"total_commission"`
	Completed       bool   `json:"completed"`
}

// CatalogItem 目录条目
type CatalogItem struct {
	Position             int    `json:"position"`
	ProductID            int64  `json:"product_id"`
	Name                 string `json:"name"`
	Price                string `json:"price"`
	CommissionPercentage string `json:"commission_percentage"`
	QuantityMultiplier   int    `json:"quantity_multiplier"`
	Purchased            bool   `json:"purchased"`
	IsNext               bool   `json:"is_next"`
	IsCombo              bool   `json:"is_combo"`
}

// TaskStateResponse 权限实例的任务面板
type TaskStateResponse struct {
	Access   *AccessResponse `json:"access"`
	Progress TaskProgress    `json:"progress"`
	Next     *NextTask       `json:"next,omitempty"`
}

// CatalogResponse 冻结目录，标出已购、下一个和连单位置
type CatalogResponse struct {
	AccessID int64         `json:"access_id"`
	Items    []CatalogItem `json:"items"`
}

// NextTask 下一个任务及所需余额
type NextTask struct {
	TaskNumber int          `json:"task_number"`
	Product    *CatalogItem `json:"product"`
	Required   string       `json:"required"`
	Commission string       `json:"commission"`
	IsCombo    bool         `json:"is_combo"`
}
