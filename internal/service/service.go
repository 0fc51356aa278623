// Package service implements the cross-collection workflows: sale recording
// with stock compensation, customer ledger sync, service completion income,
// target recalculation and the dashboard aggregations. Collections live in
// independent documents with no cross-document transaction, so multi-step
// writes are ordered sagas with logged steps.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokomitra/backend/internal/cache"
	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/metrics"
	"tokomitra/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	cache        cache.DashboardCache
	metrics      *metrics.Metrics
	dashboardTTL time.Duration
	storeTimeout time.Duration

	targetLocks keyedLocks
}

func New(repo store.Repository, dashCache cache.DashboardCache, m *metrics.Metrics, dashboardTTL time.Duration, storeTimeout time.Duration) *Service {
	if dashCache == nil {
		dashCache = cache.NoopDashboardCache{}
	}
	if m == nil {
		m = metrics.New()
	}
	if dashboardTTL < time.Second {
		dashboardTTL = 30 * time.Second
	}
	if storeTimeout < time.Second {
		storeTimeout = 5 * time.Second
	}

	return &Service{
		repo:         repo,
		cache:        dashCache,
		metrics:      m,
		dashboardTTL: dashboardTTL,
		storeTimeout: storeTimeout,
	}
}

// boundedCtx caps a single store round-trip. Workflow steps each get their
// own deadline so one slow call cannot starve the rest of the saga.
func (s *Service) boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.ProductView, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, domain.ProductView{Product: p, LowStock: p.Stock <= p.MinStock})
	}
	return views, nil
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.ProductView, error) {
	views, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.ProductView, 0, len(views))
	for _, v := range views {
		if v.LowStock {
			low = append(low, v)
		}
	}
	return low, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrValidation
	}
	if req.SellPriceCents < 1 || req.BuyPriceCents < 0 || req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrValidation
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:           req.Name,
		Category:       req.Category,
		BuyPriceCents:  req.BuyPriceCents,
		SellPriceCents: req.SellPriceCents,
		Stock:          req.InitialStock,
		MinStock:       req.MinStock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, store.ErrValidation
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Category = category
	}
	if req.BuyPriceCents != nil {
		if *req.BuyPriceCents < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.BuyPriceCents = *req.BuyPriceCents
	}
	if req.SellPriceCents != nil {
		if *req.SellPriceCents < 1 {
			return domain.Product{}, store.ErrValidation
		}
		updated.SellPriceCents = *req.SellPriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.MinStock = *req.MinStock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}
