// Package accounting builds windowed revenue reports from settled orders.
// Reports are computed per request and never persisted.
package accounting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

const (
	monthsInReport     = 6
	topProductsLimit   = 5
	transactionsLimit  = 20
	transactionSale    = "sale"
	transactionPayable = "commission"
)

// Report is the accounting view of one window. Percentages are expressed
// on a 0–100 scale and rounded to two places.
type Report struct {
	Range         window.Range
	PreviousRange window.Range

	TotalRevenue      decimal.Decimal
	TotalOrders       int
	AverageOrderValue decimal.Decimal
	RefundedOrders    int
	RefundRate        decimal.Decimal

	RevenueGrowth           decimal.Decimal
	OrdersGrowth            decimal.Decimal
	AverageOrderValueGrowth decimal.Decimal

	Commission         CommissionTotals
	MonthlyRevenue     []MonthRevenue
	TopProducts        []ProductSales
	RecentTransactions []Transaction

	GeneratedAt time.Time
}

// CommissionTotals sums the splits of the window's paid orders, computed with
// the rates current at report time.
type CommissionTotals struct {
	Profit         decimal.Decimal
	Owner          decimal.Decimal
	Worker         decimal.Decimal
	Store          decimal.Decimal
	SellerResidual decimal.Decimal
}

// MonthRevenue is the paid revenue of one calendar month.
type MonthRevenue struct {
	Month   time.Time
	Revenue decimal.Decimal
	Orders  int
}

// ProductSales is the paid revenue of one product inside the window.
type ProductSales struct {
	ProductID string
	Name      string
	Revenue   decimal.Decimal
	Quantity  int
}

// Transaction is an entry of the display feed. Sales are positive; the
// commission debits derived from them are negative. The feed is recomputed
// from orders and current rates, so it may differ from recorded payouts
// when rates changed after settlement.
type Transaction struct {
	ID          string
	OrderID     string
	Kind        string
	Role        commission.Role
	Description string
	Amount      decimal.Decimal
	Date        time.Time
}
