package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/store"
	"tokomitra/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	transactionsByID map[string]*domain.Transaction
	customersByID    map[string]domain.Customer
	customerIDByTel  map[string]string
	receivablesByID  map[string]domain.Receivable
	ticketsByID      map[string]domain.ServiceTicket
	targetsByID      map[string]domain.Target
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		transactionsByID: make(map[string]*domain.Transaction),
		customersByID:    make(map[string]domain.Customer),
		customerIDByTel:  make(map[string]string),
		receivablesByID:  make(map[string]domain.Receivable),
		ticketsByID:      make(map[string]domain.ServiceTicket),
		targetsByID:      make(map[string]domain.Target),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// NewSeeded builds a store pre-loaded with demo products and the dev user
// accounts. Used when no DATABASE_URL is configured.
func NewSeeded() *Store {
	s := New()

	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prd-case-01", Name: "Silicone Phone Case", Category: "accessory", BuyPriceCents: 3000, SellPriceCents: 9900, Stock: 80, MinStock: 10},
		{ID: "prd-charger-01", Name: "USB-C Fast Charger 25W", Category: "accessory", BuyPriceCents: 9500, SellPriceCents: 24900, Stock: 45, MinStock: 8},
		{ID: "prd-glass-01", Name: "Tempered Glass Protector", Category: "accessory", BuyPriceCents: 1500, SellPriceCents: 7900, Stock: 120, MinStock: 20},
		{ID: "prd-screen-a52", Name: "Replacement Screen A52", Category: "spare-part", BuyPriceCents: 85000, SellPriceCents: 159900, Stock: 12, MinStock: 3},
		{ID: "prd-battery-ip11", Name: "Battery iPhone 11", Category: "spare-part", BuyPriceCents: 42000, SellPriceCents: 89900, Stock: 18, MinStock: 4},
		{ID: "prd-cable-01", Name: "Lightning Cable 1m", Category: "accessory", BuyPriceCents: 2500, SellPriceCents: 8900, Stock: 95, MinStock: 15},
		{ID: "prd-powerbank-01", Name: "Powerbank 10000mAh", Category: "electronics", BuyPriceCents: 32000, SellPriceCents: 69900, Stock: 25, MinStock: 5},
		{ID: "prd-earbuds-01", Name: "Wireless Earbuds", Category: "electronics", BuyPriceCents: 48000, SellPriceCents: 119900, Stock: 20, MinStock: 5},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables, with hardcoded dev defaults and a warning when
// unset. Production deployments use PostgreSQL and never hit this path.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.SellPriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrValidation
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.SellPriceCents < 1 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	// Stock is owned by the ledger operations, not by plain edits.
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

// DecreaseStock is the check-and-decrement under a single lock; concurrent
// sales of the last unit cannot both succeed.
func (s *Store) DecreaseStock(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	if product.Stock < qty {
		return store.ErrInsufficientStock
	}
	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return nil
}

func (s *Store) IncreaseStock(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Type != domain.TxTypeIncome && tx.Type != domain.TxTypeExpense && tx.Type != domain.TxTypeSale {
		return nil, store.ErrValidation
	}
	if tx.AmountCents < 0 {
		return nil, store.ErrValidation
	}
	if tx.Type == domain.TxTypeSale && tx.Quantity < 1 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	txCopy := tx
	s.transactionsByID[tx.ID] = &txCopy
	created := tx
	return &created, nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyTx := *tx
	return &copyTx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactionsByID[tx.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = time.Now().UTC()

	txCopy := tx
	s.transactionsByID[tx.ID] = &txCopy
	updated := tx
	return &updated, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactionsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.transactionsByID, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time, types []string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactionsByID {
		if !inRange(tx.CreatedAt, from, to) {
			continue
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[tx.Type]; !ok {
				continue
			}
		}
		result = append(result, *tx)
	}

	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) SumTransactionAmounts(ctx context.Context, from time.Time, to time.Time, types []string) (int64, error) {
	txs, err := s.ListTransactions(ctx, from, to, types)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, tx := range txs {
		sum += tx.AmountCents
	}
	return sum, nil
}

func (s *Store) FindTransactionByServiceID(_ context.Context, serviceID string) (*domain.Transaction, error) {
	if serviceID == "" {
		return nil, store.ErrValidation
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactionsByID {
		if tx.ServiceID == serviceID {
			copyTx := *tx
			return &copyTx, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSalesByPhone(_ context.Context, phone string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 16)
	for _, tx := range s.transactionsByID {
		if tx.Type != domain.TxTypeSale || tx.CustomerPhone != phone {
			continue
		}
		result = append(result, *tx)
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) GetCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.customerIDByTel[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer := s.customersByID[id]
	return cloneCustomer(customer), nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" || strings.TrimSpace(customer.Phone) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.customersByID[customer.ID] = customer
	// Phone is a natural key but not enforced unique: last write wins on the
	// lookup index, matching the source store's behavior.
	s.customerIDByTel[customer.Phone] = customer.ID
	return cloneCustomer(customer), nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customersByID[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	s.customersByID[customer.ID] = customer
	s.customerIDByTel[customer.Phone] = customer.ID
	return cloneCustomer(customer), nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, *cloneCustomer(c))
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateReceivable(_ context.Context, receivable domain.Receivable) (*domain.Receivable, error) {
	if receivable.AmountCents < 1 {
		return nil, store.ErrValidation
	}
	if receivable.Type != domain.ReceivableTypeReceivable && receivable.Type != domain.ReceivableTypePayable {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if receivable.ID == "" {
		receivable.ID = xid.New("rcv")
	}
	if receivable.Status == "" {
		receivable.Status = domain.ReceivableUnpaid
	}
	if receivable.CreatedAt.IsZero() {
		receivable.CreatedAt = time.Now().UTC()
	}

	s.receivablesByID[receivable.ID] = receivable
	created := receivable
	return &created, nil
}

func (s *Store) GetReceivableByID(_ context.Context, id string) (*domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receivable, ok := s.receivablesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyReceivable := receivable
	return &copyReceivable, nil
}

func (s *Store) UpdateReceivableStatus(_ context.Context, id string, status string) (*domain.Receivable, error) {
	if status != domain.ReceivableUnpaid && status != domain.ReceivablePaid {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receivable, ok := s.receivablesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	receivable.Status = status
	s.receivablesByID[id] = receivable
	copyReceivable := receivable
	return &copyReceivable, nil
}

func (s *Store) ListReceivables(_ context.Context, status string) ([]domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Receivable, 0, len(s.receivablesByID))
	for _, r := range s.receivablesByID {
		if status != "" && r.Status != status {
			continue
		}
		result = append(result, r)
	}
	slices.SortFunc(result, func(a, b domain.Receivable) int {
		if a.DueDate.Equal(b.DueDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.DueDate.Before(b.DueDate) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateServiceTicket(_ context.Context, ticket domain.ServiceTicket) (*domain.ServiceTicket, error) {
	if strings.TrimSpace(ticket.CustomerName) == "" || strings.TrimSpace(ticket.Problem) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = xid.New("svc")
	}
	now := time.Now().UTC()
	if ticket.Status == "" {
		ticket.Status = domain.TicketPending
	}
	if ticket.ReceivedDate.IsZero() {
		ticket.ReceivedDate = now
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now

	s.ticketsByID[ticket.ID] = ticket
	return cloneTicket(ticket), nil
}

func (s *Store) GetServiceTicketByID(_ context.Context, id string) (*domain.ServiceTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.ticketsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *Store) UpdateServiceTicket(_ context.Context, ticket domain.ServiceTicket) (*domain.ServiceTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ticketsByID[ticket.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ticket.CreatedAt = existing.CreatedAt
	ticket.UpdatedAt = time.Now().UTC()
	s.ticketsByID[ticket.ID] = ticket
	return cloneTicket(ticket), nil
}

func (s *Store) ListServiceTickets(_ context.Context, status string) ([]domain.ServiceTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceTicket, 0, len(s.ticketsByID))
	for _, t := range s.ticketsByID {
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, *cloneTicket(t))
	}
	slices.SortFunc(result, func(a, b domain.ServiceTicket) int {
		if a.ReceivedDate.Equal(b.ReceivedDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.ReceivedDate.After(b.ReceivedDate) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) SumCompletedServiceCosts(_ context.Context, phone string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, t := range s.ticketsByID {
		if t.Status != domain.TicketCompleted || t.CustomerPhone != phone {
			continue
		}
		sum += t.CostCents()
	}
	return sum, nil
}

func (s *Store) CreateTarget(_ context.Context, target domain.Target) (*domain.Target, error) {
	if strings.TrimSpace(target.Title) == "" || target.TargetAmountCents < 1 {
		return nil, store.ErrValidation
	}
	switch target.Period {
	case domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly, domain.PeriodYearly:
	default:
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if target.ID == "" {
		target.ID = xid.New("tgt")
	}
	now := time.Now().UTC()
	if target.Status == "" {
		target.Status = domain.TargetActive
	}
	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}
	target.UpdatedAt = now

	s.targetsByID[target.ID] = target
	created := target
	return &created, nil
}

func (s *Store) GetTargetByID(_ context.Context, id string) (*domain.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.targetsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyTarget := target
	return &copyTarget, nil
}

func (s *Store) ListTargetsByStatus(_ context.Context, status string) ([]domain.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Target, 0, len(s.targetsByID))
	for _, t := range s.targetsByID {
		if status != "" && t.Status != status {
			continue
		}
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b domain.Target) int {
		return cmpString(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) UpdateTargetProgress(_ context.Context, id string, start time.Time, end time.Time, currentCents int64, status string) (*domain.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.targetsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	target.StartDate = start
	target.EndDate = end
	target.CurrentAmountCents = currentCents
	target.Status = status
	target.UpdatedAt = time.Now().UTC()
	s.targetsByID[id] = target
	copyTarget := target
	return &copyTarget, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("user %s already exists", user.Username)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// inRange reports whether ts falls in the half-open window [from, to).
func inRange(ts time.Time, from time.Time, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}

func cloneCustomer(c domain.Customer) *domain.Customer {
	copyCustomer := c
	if c.LastVisit != nil {
		lv := *c.LastVisit
		copyCustomer.LastVisit = &lv
	}
	if c.LastPurchaseDate != nil {
		lp := *c.LastPurchaseDate
		copyCustomer.LastPurchaseDate = &lp
	}
	if c.DiscountCard != nil {
		card := *c.DiscountCard
		copyCustomer.DiscountCard = &card
	}
	return &copyCustomer
}

func cloneTicket(t domain.ServiceTicket) *domain.ServiceTicket {
	copyTicket := t
	if t.CompletedDate != nil {
		cd := *t.CompletedDate
		copyTicket.CompletedDate = &cd
	}
	return &copyTicket
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
