package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// Dec 测试中构造金额
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Username: fmt.Sprintf("testuser_%d", nextSeq()),
		Role:     model.RoleUser,
		Balance:  decimal.Zero,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithBalance 设置余额
func WithBalance(balance string) func(*model.User) {
	return func(u *model.User) {
		u.Balance = Dec(balance)
	}
}

// WithRole 设置角色
func WithRole(role string) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// TestLevel 创建等级定义
func TestLevel(t *testing.T, db *gorm.DB, level int, category string, productsCount int, commissionPct, price string) *model.VipLevel {
	t.Helper()

	l := &model.VipLevel{
		Level:                level,
		Category:             category,
		ProductsCount:        productsCount,
		CommissionPercentage: Dec(commissionPct),
		Price:                Dec(price),
	}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("Failed to create test level: %v", err)
	}
	return l
}

// TestProduct 创建商品，默认上架、数量倍数 1
func TestProduct(t *testing.T, db *gorm.DB, category, name, price, commissionPct string, opts ...func(*model.Product)) *model.Product {
	t.Helper()

	p := &model.Product{
		Category:             category,
		Name:                 name,
		Price:                Dec(price),
		CommissionPercentage: Dec(commissionPct),
		QuantityMultiplier:   1,
		IsActive:             true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}
	return p
}

// WithQuantityMultiplier 设置数量倍数
func WithQuantityMultiplier(n int) func(*model.Product) {
	return func(p *model.Product) {
		p.QuantityMultiplier = n
	}
}

// WithInactive 下架
func WithInactive() func(*model.Product) {
	return func(p *model.Product) {
		p.IsActive = false
	}
}

// TestProducts 按价格批量创建商品，名称为 Product 01、Product 02…，佣金比例 15%
func TestProducts(t *testing.T, db *gorm.DB, category string, prices ...string) []*model.Product {
	t.Helper()

	products := make([]*model.Product, 0, len(prices))
	for i, price := range prices {
		products = append(products, TestProduct(t, db, category, fmt.Sprintf("Product %02d", i+1), price, "15"))
	}
	return products
}

// TestAccess 直接写入一条权限实例，不经过审批流程
func TestAccess(t *testing.T, db *gorm.DB, userID int64, level int, category, status string, opts ...func(*model.VipAccess)) *model.VipAccess {
	t.Helper()

	a := &model.VipAccess{
		UserID:      userID,
		Level:       level,
		Category:    category,
		Status:      status,
		Price:       decimal.Zero,
		HeldAmount:  decimal.Zero,
		RequestedAt: time.Now(),
	}
	if status == model.AccessStatusPending || status == model.AccessStatusApproved {
		a.ActiveKey = model.ActiveKeyFor(userID, level, category)
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("Failed to create test access: %v", err)
	}
	return a
}

// WithAccessPrice 设置权限价格
func WithAccessPrice(price string) func(*model.VipAccess) {
	return func(a *model.VipAccess) {
		a.Price = Dec(price)
	}
}

// WithRequestedAt 设置申请时间
func WithRequestedAt(at time.Time) func(*model.VipAccess) {
	return func(a *model.VipAccess) {
		a.RequestedAt = at
	}
}

// WithComboSnapshot 设置冻结连单
func WithComboSnapshot(position int, multiplier, depositPct string) func(*model.VipAccess) {
	return func(a *model.VipAccess) {
		a.ComboEnabled = true
		a.ComboPosition = position
		a.ComboMultiplier = Dec(multiplier)
		a.ComboDepositPercent = Dec(depositPct)
	}
}

// TestCatalog 为权限实例写入冻结目录
func TestCatalog(t *testing.T, db *gorm.DB, accessID int64, products []*model.Product) []model.AccessCatalogItem {
	t.Helper()

	items := make([]model.AccessCatalogItem, 0, len(products))
	for i, p := range products {
		items = append(items, model.AccessCatalogItem{
			AccessID:             accessID,
			Position:             i + 1,
			ProductID:            p.ID,
			Name:                 p.Name,
			Price:                p.Price,
			CommissionPercentage: p.CommissionPercentage,
			QuantityMultiplier:   p.QuantityMultiplier,
		})
	}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("Failed to create test catalog: %v", err)
	}
	return items
}
