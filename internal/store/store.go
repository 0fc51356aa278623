package store

import (
	"context"
	"errors"
	"time"

	"tokomitra/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflicting state")
	ErrForbidden         = errors.New("forbidden")
)

// Repository is the document-store boundary. The workflow components never
// touch a store handle directly; everything goes through this interface so
// they stay unit-testable against the in-memory implementation.
//
// DecreaseStock is atomic decrement-if-enough: it must fail with
// ErrInsufficientStock instead of driving stock negative, and the check and
// decrement happen in a single store operation so concurrent sales of the
// last unit cannot both succeed.
type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	DecreaseStock(ctx context.Context, productID string, qty int) error
	IncreaseStock(ctx context.Context, productID string, qty int) error

	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, from time.Time, to time.Time, types []string) ([]domain.Transaction, error)
	SumTransactionAmounts(ctx context.Context, from time.Time, to time.Time, types []string) (int64, error)
	FindTransactionByServiceID(ctx context.Context, serviceID string) (*domain.Transaction, error)
	ListSalesByPhone(ctx context.Context, phone string) ([]domain.Transaction, error)

	GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)

	CreateReceivable(ctx context.Context, receivable domain.Receivable) (*domain.Receivable, error)
	GetReceivableByID(ctx context.Context, id string) (*domain.Receivable, error)
	UpdateReceivableStatus(ctx context.Context, id string, status string) (*domain.Receivable, error)
	ListReceivables(ctx context.Context, status string) ([]domain.Receivable, error)

	CreateServiceTicket(ctx context.Context, ticket domain.ServiceTicket) (*domain.ServiceTicket, error)
	GetServiceTicketByID(ctx context.Context, id string) (*domain.ServiceTicket, error)
	UpdateServiceTicket(ctx context.Context, ticket domain.ServiceTicket) (*domain.ServiceTicket, error)
	ListServiceTickets(ctx context.Context, status string) ([]domain.ServiceTicket, error)
	SumCompletedServiceCosts(ctx context.Context, phone string) (int64, error)

	CreateTarget(ctx context.Context, target domain.Target) (*domain.Target, error)
	GetTargetByID(ctx context.Context, id string) (*domain.Target, error)
	ListTargetsByStatus(ctx context.Context, status string) ([]domain.Target, error)
	UpdateTargetProgress(ctx context.Context, id string, start time.Time, end time.Time, currentCents int64, status string) (*domain.Target, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
