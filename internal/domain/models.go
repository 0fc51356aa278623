package domain

import "time"

// All monetary amounts are int64 cents.

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	BuyPriceCents  int64     `json:"buy_price_cents"`
	SellPriceCents int64     `json:"sell_price_cents"`
	Stock          int       `json:"stock"`
	MinStock       int       `json:"min_stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	BuyPriceCents  int64  `json:"buy_price_cents"`
	SellPriceCents int64  `json:"sell_price_cents"`
	InitialStock   int    `json:"initial_stock"`
	MinStock       int    `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	BuyPriceCents  *int64  `json:"buy_price_cents,omitempty"`
	SellPriceCents *int64  `json:"sell_price_cents,omitempty"`
	MinStock       *int    `json:"min_stock,omitempty"`
}

type ProductView struct {
	Product
	LowStock bool `json:"low_stock"`
}

const (
	TxTypeIncome  = "income"
	TxTypeExpense = "expense"
	TxTypeSale    = "sale"
)

const (
	DiscountFixed   = "fixed"
	DiscountPercent = "percent"
)

const (
	PaymentCash        = "cash"
	PaymentCredit      = "credit"
	PaymentInstallment = "installment"
)

// Transaction is the single financial record written for every sale, income
// or expense. For multi-line sales, ProductID holds only the first line's
// product and Quantity the aggregate unit count; the per-line breakdown
// survives in Description.
type Transaction struct {
	ID                  string    `json:"id"`
	Type                string    `json:"type"`
	AmountCents         int64     `json:"amount_cents"`
	OriginalAmountCents int64     `json:"original_amount_cents"`
	DiscountValue       float64   `json:"discount_value"`
	DiscountType        string    `json:"discount_type,omitempty"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	ProductID           string    `json:"product_id,omitempty"`
	Quantity            int       `json:"quantity"`
	CustomerName        string    `json:"customer_name,omitempty"`
	CustomerSurname     string    `json:"customer_surname,omitempty"`
	CustomerPhone       string    `json:"customer_phone,omitempty"`
	PaymentType         string    `json:"payment_type"`
	ServiceID           string    `json:"service_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type SaleLine struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
}

type SaleCreateRequest struct {
	Lines           []SaleLine `json:"lines"`
	DiscountValue   float64    `json:"discount_value"`
	DiscountType    string     `json:"discount_type,omitempty"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	CustomerName    string     `json:"customer_name,omitempty"`
	CustomerSurname string     `json:"customer_surname,omitempty"`
	CustomerPhone   string     `json:"customer_phone,omitempty"`
	PaymentType     string     `json:"payment_type"`
	DueDate         string     `json:"due_date,omitempty"`
}

type EntryCreateRequest struct {
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// TransactionUpdateRequest carries the editable fields of a transaction.
// Stock compensation for the previous sale effect is applied before any of
// these are persisted.
type TransactionUpdateRequest struct {
	Type          *string  `json:"type,omitempty"`
	AmountCents   *int64   `json:"amount_cents,omitempty"`
	DiscountValue *float64 `json:"discount_value,omitempty"`
	DiscountType  *string  `json:"discount_type,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Category      *string  `json:"category,omitempty"`
	ProductID     *string  `json:"product_id,omitempty"`
	Quantity      *int     `json:"quantity,omitempty"`
	PaymentType   *string  `json:"payment_type,omitempty"`
}

type DiscountCard struct {
	CardNumber string    `json:"card_number"`
	Percentage float64   `json:"percentage"`
	Expiry     time.Time `json:"expiry"`
	Active     bool      `json:"active"`
}

type Customer struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Surname          string        `json:"surname,omitempty"`
	Phone            string        `json:"phone"`
	LoyaltyPoints    int64         `json:"loyalty_points"`
	TotalSpentCents  int64         `json:"total_spent_cents"`
	VisitCount       int           `json:"visit_count"`
	LastVisit        *time.Time    `json:"last_visit,omitempty"`
	LastPurchaseDate *time.Time    `json:"last_purchase_date,omitempty"`
	DiscountCard     *DiscountCard `json:"discount_card,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

const (
	ReceivableTypeReceivable = "receivable"
	ReceivableTypePayable    = "payable"
)

const (
	ReceivableUnpaid = "unpaid"
	ReceivablePaid   = "paid"
)

type Receivable struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	CustomerPhone string    `json:"customer_phone"`
	AmountCents   int64     `json:"amount_cents"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	DueDate       time.Time `json:"due_date"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	TicketPending    = "pending"
	TicketInProgress = "in-progress"
	TicketCompleted  = "completed"
	TicketCancelled  = "cancelled"
)

type ServiceTicket struct {
	ID              string     `json:"id"`
	CustomerName    string     `json:"customer_name"`
	CustomerSurname string     `json:"customer_surname,omitempty"`
	CustomerPhone   string     `json:"customer_phone"`
	DeviceBrand     string     `json:"device_brand"`
	DeviceModel     string     `json:"device_model"`
	SerialNumber    string     `json:"serial_number,omitempty"`
	Problem         string     `json:"problem"`
	Solution        string     `json:"solution,omitempty"`
	LaborCostCents  int64      `json:"labor_cost_cents"`
	PartsCostCents  int64      `json:"parts_cost_cents"`
	Status          string     `json:"status"`
	ReceivedDate    time.Time  `json:"received_date"`
	CompletedDate   *time.Time `json:"completed_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CostCents is the total charge for a completed service.
func (t ServiceTicket) CostCents() int64 {
	return t.LaborCostCents + t.PartsCostCents
}

type ServiceTicketCreateRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerSurname string `json:"customer_surname,omitempty"`
	CustomerPhone   string `json:"customer_phone"`
	DeviceBrand     string `json:"device_brand"`
	DeviceModel     string `json:"device_model"`
	SerialNumber    string `json:"serial_number,omitempty"`
	Problem         string `json:"problem"`
	LaborCostCents  int64  `json:"labor_cost_cents"`
	PartsCostCents  int64  `json:"parts_cost_cents"`
}

type ServiceTicketUpdateRequest struct {
	Status         *string `json:"status,omitempty"`
	Solution       *string `json:"solution,omitempty"`
	Problem        *string `json:"problem,omitempty"`
	LaborCostCents *int64  `json:"labor_cost_cents,omitempty"`
	PartsCostCents *int64  `json:"parts_cost_cents,omitempty"`
}

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

const (
	TargetActive    = "active"
	TargetCompleted = "completed"
	TargetExpired   = "expired"
)

// Target is a recurring sales goal. CurrentAmountCents, StartDate, EndDate
// and Status are derived: the recalculator always overwrites them.
type Target struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	TargetAmountCents  int64     `json:"target_amount_cents"`
	CurrentAmountCents int64     `json:"current_amount_cents"`
	Period             string    `json:"period"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TargetCreateRequest struct {
	Title             string `json:"title"`
	TargetAmountCents int64  `json:"target_amount_cents"`
	Period            string `json:"period"`
}

type PeriodRevenue struct {
	RevenueCents int64 `json:"revenue_cents"`
	ExpenseCents int64 `json:"expense_cents"`
}

type ProductRevenue struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	RevenueCents int64  `json:"revenue_cents"`
	UnitsSold    int    `json:"units_sold"`
}

type CustomerSpend struct {
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	SpentCents int64  `json:"spent_cents"`
}

type CategoryRevenue struct {
	Category     string `json:"category"`
	RevenueCents int64  `json:"revenue_cents"`
}

type DashboardStats struct {
	Today             PeriodRevenue     `json:"today"`
	Week              PeriodRevenue     `json:"week"`
	Month             PeriodRevenue     `json:"month"`
	Year              PeriodRevenue     `json:"year"`
	OpenReceivables   int               `json:"open_receivables"`
	PendingServices   int               `json:"pending_services"`
	TopProducts       []ProductRevenue  `json:"top_products"`
	TopCustomers      []CustomerSpend   `json:"top_customers"`
	CategoryBreakdown []CategoryRevenue `json:"category_breakdown"`
	GeneratedAt       string            `json:"generated_at"`
}

const (
	RiskNew    = "new"
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

const (
	TierNew      = "new"
	TierRegular  = "regular"
	TierLoyal    = "loyal"
	TierChampion = "champion"
)

const (
	ProfitLow    = "low"
	ProfitMedium = "medium"
	ProfitHigh   = "high"
)

type CustomerProfile struct {
	Customer           Customer `json:"customer"`
	RiskLevel          string   `json:"risk_level"`
	LoyaltyTier        string   `json:"loyalty_tier"`
	Profitability      string   `json:"profitability"`
	LifetimeValueCents int64    `json:"lifetime_value_cents"`
	SaleCount          int      `json:"sale_count"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
