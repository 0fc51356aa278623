package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/store"
	"tokomitra/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.SellPriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, buy_price_cents, sell_price_cents, stock, min_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Name, product.Category, product.BuyPriceCents, product.SellPriceCents, product.Stock, product.MinStock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, buy_price_cents, sell_price_cents, stock, min_stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Category, &product.BuyPriceCents, &product.SellPriceCents, &product.Stock, &product.MinStock, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.SellPriceCents < 1 {
		return nil, store.ErrValidation
	}

	// Stock is deliberately excluded: only the ledger operations move it.
	var updated domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, buy_price_cents = $4, sell_price_cents = $5, min_stock = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, buy_price_cents, sell_price_cents, stock, min_stock, created_at, updated_at
	`, product.ID, product.Name, product.Category, product.BuyPriceCents, product.SellPriceCents, product.MinStock).Scan(
		&updated.ID, &updated.Name, &updated.Category, &updated.BuyPriceCents, &updated.SellPriceCents,
		&updated.Stock, &updated.MinStock, &updated.CreatedAt, &updated.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, buy_price_cents, sell_price_cents, stock, min_stock, created_at, updated_at
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.BuyPriceCents, &p.SellPriceCents, &p.Stock, &p.MinStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// DecreaseStock decrements in a single conditional UPDATE so concurrent
// sales of the last unit cannot both succeed.
func (s *Store) DecreaseStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrInsufficientStock
	}
	return nil
}

func (s *Store) IncreaseStock(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const transactionColumns = `
	id, type, amount_cents, original_amount_cents, discount_value, COALESCE(discount_type,''),
	description, category, COALESCE(product_id,''), quantity,
	COALESCE(customer_name,''), COALESCE(customer_surname,''), COALESCE(customer_phone,''),
	payment_type, COALESCE(service_id,''), created_at, updated_at`

func scanTransaction(row interface{ Scan(dest ...any) error }) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.Type, &tx.AmountCents, &tx.OriginalAmountCents, &tx.DiscountValue, &tx.DiscountType,
		&tx.Description, &tx.Category, &tx.ProductID, &tx.Quantity,
		&tx.CustomerName, &tx.CustomerSurname, &tx.CustomerPhone,
		&tx.PaymentType, &tx.ServiceID, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Type != domain.TxTypeIncome && tx.Type != domain.TxTypeExpense && tx.Type != domain.TxTypeSale {
		return nil, store.ErrValidation
	}
	if tx.AmountCents < 0 {
		return nil, store.ErrValidation
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, type, amount_cents, original_amount_cents, discount_value, discount_type,
			description, category, product_id, quantity,
			customer_name, customer_surname, customer_phone,
			payment_type, service_id, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, tx.ID, tx.Type, tx.AmountCents, tx.OriginalAmountCents, tx.DiscountValue, nullIfEmpty(tx.DiscountType),
		tx.Description, tx.Category, nullIfEmpty(tx.ProductID), tx.Quantity,
		nullIfEmpty(tx.CustomerName), nullIfEmpty(tx.CustomerSurname), nullIfEmpty(tx.CustomerPhone),
		tx.PaymentType, nullIfEmpty(tx.ServiceID), tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	created := tx
	return &created, nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET type = $2, amount_cents = $3, original_amount_cents = $4, discount_value = $5, discount_type = $6,
			description = $7, category = $8, product_id = $9, quantity = $10,
			customer_name = $11, customer_surname = $12, customer_phone = $13,
			payment_type = $14, service_id = $15, updated_at = now()
		WHERE id = $1
		RETURNING `+transactionColumns+`
	`, tx.ID, tx.Type, tx.AmountCents, tx.OriginalAmountCents, tx.DiscountValue, nullIfEmpty(tx.DiscountType),
		tx.Description, tx.Category, nullIfEmpty(tx.ProductID), tx.Quantity,
		nullIfEmpty(tx.CustomerName), nullIfEmpty(tx.CustomerSurname), nullIfEmpty(tx.CustomerPhone),
		tx.PaymentType, nullIfEmpty(tx.ServiceID))
	updated, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time, types []string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE created_at >= $1
			AND created_at < $2
			AND (cardinality($3::text[]) = 0 OR type = ANY($3))
		ORDER BY created_at ASC, id ASC
	`, from, to, typeArray(types))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) SumTransactionAmounts(ctx context.Context, from time.Time, to time.Time, types []string) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint
		FROM transactions
		WHERE created_at >= $1
			AND created_at < $2
			AND (cardinality($3::text[]) = 0 OR type = ANY($3))
	`, from, to, typeArray(types)).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (s *Store) FindTransactionByServiceID(ctx context.Context, serviceID string) (*domain.Transaction, error) {
	if serviceID == "" {
		return nil, store.ErrValidation
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE service_id = $1`, serviceID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *Store) ListSalesByPhone(ctx context.Context, phone string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE type = $1 AND customer_phone = $2
		ORDER BY created_at ASC, id ASC
	`, domain.TxTypeSale, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 16)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

const customerColumns = `
	id, name, COALESCE(surname,''), phone, loyalty_points, total_spent_cents, visit_count,
	last_visit, last_purchase_date,
	card_number, card_percentage, card_expiry, card_active, created_at`

func scanCustomer(row interface{ Scan(dest ...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	var lastVisit, lastPurchase, cardExpiry sql.NullTime
	var cardNumber sql.NullString
	var cardPercentage sql.NullFloat64
	var cardActive sql.NullBool
	err := row.Scan(
		&c.ID, &c.Name, &c.Surname, &c.Phone, &c.LoyaltyPoints, &c.TotalSpentCents, &c.VisitCount,
		&lastVisit, &lastPurchase,
		&cardNumber, &cardPercentage, &cardExpiry, &cardActive, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastVisit.Valid {
		lv := lastVisit.Time.UTC()
		c.LastVisit = &lv
	}
	if lastPurchase.Valid {
		lp := lastPurchase.Time.UTC()
		c.LastPurchaseDate = &lp
	}
	if cardNumber.Valid && cardNumber.String != "" {
		card := domain.DiscountCard{
			CardNumber: cardNumber.String,
			Percentage: cardPercentage.Float64,
			Active:     cardActive.Bool,
		}
		if cardExpiry.Valid {
			card.Expiry = cardExpiry.Time.UTC()
		}
		c.DiscountCard = &card
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" || strings.TrimSpace(customer.Phone) == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	var cardNumber any
	var cardPercentage any
	var cardExpiry any
	var cardActive any
	if customer.DiscountCard != nil {
		cardNumber = customer.DiscountCard.CardNumber
		cardPercentage = customer.DiscountCard.Percentage
		cardExpiry = customer.DiscountCard.Expiry
		cardActive = customer.DiscountCard.Active
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (
			id, name, surname, phone, loyalty_points, total_spent_cents, visit_count,
			last_visit, last_purchase_date,
			card_number, card_percentage, card_expiry, card_active, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Surname), customer.Phone,
		customer.LoyaltyPoints, customer.TotalSpentCents, customer.VisitCount,
		nullTime(customer.LastVisit), nullTime(customer.LastPurchaseDate),
		cardNumber, cardPercentage, cardExpiry, cardActive, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var cardNumber any
	var cardPercentage any
	var cardExpiry any
	var cardActive any
	if customer.DiscountCard != nil {
		cardNumber = customer.DiscountCard.CardNumber
		cardPercentage = customer.DiscountCard.Percentage
		cardExpiry = customer.DiscountCard.Expiry
		cardActive = customer.DiscountCard.Active
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, surname = $3, phone = $4, loyalty_points = $5, total_spent_cents = $6,
			visit_count = $7, last_visit = $8, last_purchase_date = $9,
			card_number = $10, card_percentage = $11, card_expiry = $12, card_active = $13
		WHERE id = $1
	`, customer.ID, customer.Name, nullIfEmpty(customer.Surname), customer.Phone,
		customer.LoyaltyPoints, customer.TotalSpentCents, customer.VisitCount,
		nullTime(customer.LastVisit), nullTime(customer.LastPurchaseDate),
		cardNumber, cardPercentage, cardExpiry, cardActive)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := customer
	return &updated, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateReceivable(ctx context.Context, receivable domain.Receivable) (*domain.Receivable, error) {
	if receivable.AmountCents < 1 {
		return nil, store.ErrValidation
	}
	if receivable.Type != domain.ReceivableTypeReceivable && receivable.Type != domain.ReceivableTypePayable {
		return nil, store.ErrValidation
	}
	if receivable.ID == "" {
		receivable.ID = xid.New("rcv")
	}
	if receivable.Status == "" {
		receivable.Status = domain.ReceivableUnpaid
	}
	if receivable.CreatedAt.IsZero() {
		receivable.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receivables (id, customer_id, customer_phone, amount_cents, type, status, due_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, receivable.ID, nullIfEmpty(receivable.CustomerID), receivable.CustomerPhone,
		receivable.AmountCents, receivable.Type, receivable.Status, receivable.DueDate, receivable.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := receivable
	return &created, nil
}

func (s *Store) GetReceivableByID(ctx context.Context, id string) (*domain.Receivable, error) {
	var r domain.Receivable
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(customer_id,''), customer_phone, amount_cents, type, status, due_date, created_at
		FROM receivables
		WHERE id = $1
	`, id).Scan(&r.ID, &r.CustomerID, &r.CustomerPhone, &r.AmountCents, &r.Type, &r.Status, &r.DueDate, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	r.DueDate = r.DueDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *Store) UpdateReceivableStatus(ctx context.Context, id string, status string) (*domain.Receivable, error) {
	if status != domain.ReceivableUnpaid && status != domain.ReceivablePaid {
		return nil, store.ErrValidation
	}

	var r domain.Receivable
	err := s.db.QueryRowContext(ctx, `
		UPDATE receivables
		SET status = $2
		WHERE id = $1
		RETURNING id, COALESCE(customer_id,''), customer_phone, amount_cents, type, status, due_date, created_at
	`, id, status).Scan(&r.ID, &r.CustomerID, &r.CustomerPhone, &r.AmountCents, &r.Type, &r.Status, &r.DueDate, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	r.DueDate = r.DueDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func (s *Store) ListReceivables(ctx context.Context, status string) ([]domain.Receivable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(customer_id,''), customer_phone, amount_cents, type, status, due_date, created_at
		FROM receivables
		WHERE ($1 = '' OR status = $1)
		ORDER BY due_date ASC, id ASC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receivables := make([]domain.Receivable, 0, 32)
	for rows.Next() {
		var r domain.Receivable
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.CustomerPhone, &r.AmountCents, &r.Type, &r.Status, &r.DueDate, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.DueDate = r.DueDate.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		receivables = append(receivables, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receivables, nil
}

const ticketColumns = `
	id, customer_name, COALESCE(customer_surname,''), customer_phone,
	device_brand, device_model, COALESCE(serial_number,''), problem, COALESCE(solution,''),
	labor_cost_cents, parts_cost_cents, status, received_date, completed_date, created_at, updated_at`

func scanTicket(row interface{ Scan(dest ...any) error }) (*domain.ServiceTicket, error) {
	var t domain.ServiceTicket
	var completed sql.NullTime
	err := row.Scan(
		&t.ID, &t.CustomerName, &t.CustomerSurname, &t.CustomerPhone,
		&t.DeviceBrand, &t.DeviceModel, &t.SerialNumber, &t.Problem, &t.Solution,
		&t.LaborCostCents, &t.PartsCostCents, &t.Status, &t.ReceivedDate, &completed, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		cd := completed.Time.UTC()
		t.CompletedDate = &cd
	}
	t.ReceivedDate = t.ReceivedDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func (s *Store) CreateServiceTicket(ctx context.Context, ticket domain.ServiceTicket) (*domain.ServiceTicket, error) {
	if strings.TrimSpace(ticket.CustomerName) == "" || strings.TrimSpace(ticket.Problem) == "" {
		return nil, store.ErrValidation
	}
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
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_tickets (
			id, customer_name, customer_surname, customer_phone,
			device_brand, device_model, serial_number, problem, solution,
			labor_cost_cents, parts_cost_cents, status, received_date, completed_date, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, ticket.ID, ticket.CustomerName, nullIfEmpty(ticket.CustomerSurname), ticket.CustomerPhone,
		ticket.DeviceBrand, ticket.DeviceModel, nullIfEmpty(ticket.SerialNumber), ticket.Problem, nullIfEmpty(ticket.Solution),
		ticket.LaborCostCents, ticket.PartsCostCents, ticket.Status, ticket.ReceivedDate, nullTime(ticket.CompletedDate), ticket.CreatedAt, ticket.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := ticket
	return &created, nil
}

func (s *Store) GetServiceTicketByID(ctx context.Context, id string) (*domain.ServiceTicket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM service_tickets WHERE id = $1`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *Store) UpdateServiceTicket(ctx context.Context, ticket domain.ServiceTicket) (*domain.ServiceTicket, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE service_tickets
		SET customer_name = $2, customer_surname = $3, customer_phone = $4,
			device_brand = $5, device_model = $6, serial_number = $7, problem = $8, solution = $9,
			labor_cost_cents = $10, parts_cost_cents = $11, status = $12,
			received_date = $13, completed_date = $14, updated_at = now()
		WHERE id = $1
		RETURNING `+ticketColumns+`
	`, ticket.ID, ticket.CustomerName, nullIfEmpty(ticket.CustomerSurname), ticket.CustomerPhone,
		ticket.DeviceBrand, ticket.DeviceModel, nullIfEmpty(ticket.SerialNumber), ticket.Problem, nullIfEmpty(ticket.Solution),
		ticket.LaborCostCents, ticket.PartsCostCents, ticket.Status,
		ticket.ReceivedDate, nullTime(ticket.CompletedDate))
	updated, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListServiceTickets(ctx context.Context, status string) ([]domain.ServiceTicket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM service_tickets
		WHERE ($1 = '' OR status = $1)
		ORDER BY received_date DESC, id ASC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.ServiceTicket, 0, 32)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) SumCompletedServiceCosts(ctx context.Context, phone string) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(labor_cost_cents + parts_cost_cents),0)::bigint
		FROM service_tickets
		WHERE status = $1 AND customer_phone = $2
	`, domain.TicketCompleted, phone).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

const targetColumns = `
	id, title, target_amount_cents, current_amount_cents, period,
	start_date, end_date, status, created_at, updated_at`

func scanTarget(row interface{ Scan(dest ...any) error }) (*domain.Target, error) {
	var t domain.Target
	err := row.Scan(
		&t.ID, &t.Title, &t.TargetAmountCents, &t.CurrentAmountCents, &t.Period,
		&t.StartDate, &t.EndDate, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.StartDate = t.StartDate.UTC()
	t.EndDate = t.EndDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func (s *Store) CreateTarget(ctx context.Context, target domain.Target) (*domain.Target, error) {
	if strings.TrimSpace(target.Title) == "" || target.TargetAmountCents < 1 {
		return nil, store.ErrValidation
	}
	switch target.Period {
	case domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly, domain.PeriodYearly:
	default:
		return nil, store.ErrValidation
	}
	if target.ID == "" {
		target.ID = xid.New("tgt")
	}
	now := time.Now().UTC()
	if target.Status == "" {
		target.Status = domain.TargetActive
	}
	target.CreatedAt = now
	target.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (
			id, title, target_amount_cents, current_amount_cents, period,
			start_date, end_date, status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, target.ID, target.Title, target.TargetAmountCents, target.CurrentAmountCents, target.Period,
		target.StartDate, target.EndDate, target.Status, target.CreatedAt, target.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := target
	return &created, nil
}

func (s *Store) GetTargetByID(ctx context.Context, id string) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, id)
	target, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return target, nil
}

func (s *Store) ListTargetsByStatus(ctx context.Context, status string) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE ($1 = '' OR status = $1)
		ORDER BY id ASC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make([]domain.Target, 0, 16)
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *target)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func (s *Store) UpdateTargetProgress(ctx context.Context, id string, start time.Time, end time.Time, currentCents int64, status string) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE targets
		SET start_date = $2, end_date = $3, current_amount_cents = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+targetColumns+`
	`, id, start, end, currentCents, status)
	target, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return target, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s already exists", user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func typeArray(types []string) []string {
	if types == nil {
		return []string{}
	}
	return types
}
