package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/pricing"
	"tokomitra/backend/internal/store"
)

const dashboardCacheKey = "dashboard:stats"

func validPaymentType(pt string) bool {
	return pt == domain.PaymentCash || pt == domain.PaymentCredit || pt == domain.PaymentInstallment
}

// RecordSale runs the sale saga: resolve lines, price the cart, sync the
// customer ledger, persist the single transaction record, then decrement
// stock per line. Steps after persistence are not rolled back on failure;
// the divergence is logged and surfaced to the caller.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Transaction, error) {
	if len(req.Lines) == 0 {
		return domain.Transaction{}, fmt.Errorf("%w: sale needs at least one line", store.ErrValidation)
	}
	if req.PaymentType == "" {
		req.PaymentType = domain.PaymentCash
	}
	if !validPaymentType(req.PaymentType) {
		return domain.Transaction{}, fmt.Errorf("%w: unknown payment type %q", store.ErrValidation, req.PaymentType)
	}
	if req.DiscountValue > 0 && req.DiscountType != domain.DiscountFixed && req.DiscountType != domain.DiscountPercent {
		return domain.Transaction{}, fmt.Errorf("%w: unknown discount type %q", store.ErrValidation, req.DiscountType)
	}

	subtotal := int64(0)
	totalQty := 0
	lineDescs := make([]string, 0, len(req.Lines))
	for i, line := range req.Lines {
		if line.Qty < 1 {
			return domain.Transaction{}, fmt.Errorf("%w: line %d has qty %d", store.ErrValidation, i, line.Qty)
		}

		callCtx, cancel := s.boundedCtx(ctx)
		product, err := s.repo.GetProductByID(callCtx, line.ProductID)
		cancel()
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("resolve product %s: %w", line.ProductID, err)
		}

		unitPrice := line.UnitPriceCents
		if unitPrice < 1 {
			unitPrice = product.SellPriceCents
		}
		subtotal += unitPrice * int64(line.Qty)
		totalQty += line.Qty
		lineDescs = append(lineDescs, fmt.Sprintf("%s x%d", product.Name, line.Qty))
	}

	final := pricing.FinalAmountCents(subtotal, req.DiscountValue, req.DiscountType)

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Sale: " + strings.Join(lineDescs, ", ")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "sales"
	}

	// Step 1: customer ledger sync, before persistence so a ledger failure
	// aborts the sale cleanly.
	if strings.TrimSpace(req.CustomerName) != "" && strings.TrimSpace(req.CustomerPhone) != "" {
		if err := s.syncCustomerLedger(ctx, req, final); err != nil {
			return domain.Transaction{}, fmt.Errorf("customer ledger sync: %w", err)
		}
		log.Printf("[sale] step customer-sync done phone=%s amount=%d", req.CustomerPhone, final)
	}

	// Step 2: persist the single transaction record. ProductID and Quantity
	// summarize the cart (first line, aggregate units); the per-line detail
	// lives in the description.
	callCtx, cancel := s.boundedCtx(ctx)
	created, err := s.repo.CreateTransaction(callCtx, domain.Transaction{
		Type:                domain.TxTypeSale,
		AmountCents:         final,
		OriginalAmountCents: subtotal,
		DiscountValue:       req.DiscountValue,
		DiscountType:        req.DiscountType,
		Description:         description,
		Category:            category,
		ProductID:           req.Lines[0].ProductID,
		Quantity:            totalQty,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerSurname:     strings.TrimSpace(req.CustomerSurname),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		PaymentType:         req.PaymentType,
	})
	cancel()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("persist sale: %w", err)
	}
	log.Printf("[sale] step persist done id=%s amount=%d qty=%d", created.ID, created.AmountCents, created.Quantity)

	// Step 3: decrement stock for every line. The record above already
	// exists; a failed decrement leaves the collections divergent, which is
	// counted, logged and returned rather than rolled back.
	var stockErr error
	for _, line := range req.Lines {
		callCtx, cancel := s.boundedCtx(ctx)
		err := s.repo.DecreaseStock(callCtx, line.ProductID, line.Qty)
		cancel()
		if err != nil {
			if errors.Is(err, store.ErrInsufficientStock) {
				s.metrics.StockShortfalls.Inc()
			}
			s.metrics.SalePartialFailures.Inc()
			log.Printf("[sale] WARN: stock decrement failed tx=%s product=%s qty=%d: %v", created.ID, line.ProductID, line.Qty, err)
			if stockErr == nil {
				stockErr = fmt.Errorf("stock decrement for %s: %w", line.ProductID, err)
			}
			continue
		}
		log.Printf("[sale] step stock-decrement done tx=%s product=%s qty=%d", created.ID, line.ProductID, line.Qty)
	}
	if stockErr != nil {
		return *created, stockErr
	}

	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		log.Printf("[sale] WARN: dashboard cache invalidation failed: %v", err)
	}

	return *created, nil
}

// RecordEntry creates a plain income or expense record with no stock or
// customer side effects.
func (s *Service) RecordEntry(ctx context.Context, req domain.EntryCreateRequest) (domain.Transaction, error) {
	if req.Type != domain.TxTypeIncome && req.Type != domain.TxTypeExpense {
		return domain.Transaction{}, fmt.Errorf("%w: entry type must be income or expense", store.ErrValidation)
	}
	if req.AmountCents < 1 {
		return domain.Transaction{}, fmt.Errorf("%w: amount must be positive", store.ErrValidation)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Transaction{}, fmt.Errorf("%w: description required", store.ErrValidation)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "general"
	}

	callCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	created, err := s.repo.CreateTransaction(callCtx, domain.Transaction{
		Type:                req.Type,
		AmountCents:         req.AmountCents,
		OriginalAmountCents: req.AmountCents,
		Description:         description,
		Category:            category,
		PaymentType:         domain.PaymentCash,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return *created, nil
}

// UpdateTransaction applies the undo-then-redo contract: the old sale effect
// is compensated before any new field is persisted, and the new effect is
// applied only after persistence. Compensation failure aborts the edit.
func (s *Service) UpdateTransaction(ctx context.Context, id string, req domain.TransactionUpdateRequest) (domain.Transaction, error) {
	callCtx, cancel := s.boundedCtx(ctx)
	existing, err := s.repo.GetTransactionByID(callCtx, id)
	cancel()
	if err != nil {
		return domain.Transaction{}, err
	}

	updated := *existing
	if req.Type != nil {
		if *req.Type != domain.TxTypeIncome && *req.Type != domain.TxTypeExpense && *req.Type != domain.TxTypeSale {
			return domain.Transaction{}, fmt.Errorf("%w: unknown transaction type %q", store.ErrValidation, *req.Type)
		}
		updated.Type = *req.Type
	}
	if req.AmountCents != nil {
		if *req.AmountCents < 0 {
			return domain.Transaction{}, fmt.Errorf("%w: amount must not be negative", store.ErrValidation)
		}
		updated.AmountCents = *req.AmountCents
	}
	if req.DiscountValue != nil {
		updated.DiscountValue = *req.DiscountValue
	}
	if req.DiscountType != nil {
		updated.DiscountType = *req.DiscountType
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.ProductID != nil {
		updated.ProductID = *req.ProductID
	}
	if req.Quantity != nil {
		updated.Quantity = *req.Quantity
	}
	if req.PaymentType != nil {
		if !validPaymentType(*req.PaymentType) {
			return domain.Transaction{}, fmt.Errorf("%w: unknown payment type %q", store.ErrValidation, *req.PaymentType)
		}
		updated.PaymentType = *req.PaymentType
	}
	if updated.Type == domain.TxTypeSale && updated.ProductID != "" && updated.Quantity < 1 {
		return domain.Transaction{}, fmt.Errorf("%w: sale quantity must be positive", store.ErrValidation)
	}

	if existing.Type == domain.TxTypeSale && existing.ProductID != "" && existing.Quantity > 0 {
		callCtx, cancel := s.boundedCtx(ctx)
		err := s.repo.IncreaseStock(callCtx, existing.ProductID, existing.Quantity)
		cancel()
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("compensate old sale effect: %w", err)
		}
		log.Printf("[transaction] step compensate done tx=%s product=%s qty=%d", id, existing.ProductID, existing.Quantity)
	}

	callCtx, cancel = s.boundedCtx(ctx)
	saved, err := s.repo.UpdateTransaction(callCtx, updated)
	cancel()
	if err != nil {
		// Stock was already compensated; the record still reflects the old
		// sale. Logged for manual reconciliation.
		log.Printf("[transaction] WARN: persist failed after compensation tx=%s: %v", id, err)
		return domain.Transaction{}, err
	}
	log.Printf("[transaction] step persist done tx=%s", id)

	if saved.Type == domain.TxTypeSale && saved.ProductID != "" && saved.Quantity > 0 {
		callCtx, cancel := s.boundedCtx(ctx)
		err := s.repo.DecreaseStock(callCtx, saved.ProductID, saved.Quantity)
		cancel()
		if err != nil {
			if errors.Is(err, store.ErrInsufficientStock) {
				s.metrics.StockShortfalls.Inc()
			}
			s.metrics.SalePartialFailures.Inc()
			log.Printf("[transaction] WARN: stock decrement failed tx=%s product=%s qty=%d: %v", id, saved.ProductID, saved.Quantity, err)
			return *saved, fmt.Errorf("apply new sale effect: %w", err)
		}
		log.Printf("[transaction] step stock-decrement done tx=%s product=%s qty=%d", id, saved.ProductID, saved.Quantity)
	}

	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		log.Printf("[transaction] WARN: dashboard cache invalidation failed: %v", err)
	}

	return *saved, nil
}

// DeleteTransaction restores stock before removing the record, so a failure
// midway leaves stock correct and the stale record visible.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	callCtx, cancel := s.boundedCtx(ctx)
	existing, err := s.repo.GetTransactionByID(callCtx, id)
	cancel()
	if err != nil {
		return err
	}

	if existing.Type == domain.TxTypeSale && existing.ProductID != "" && existing.Quantity > 0 {
		callCtx, cancel := s.boundedCtx(ctx)
		err := s.repo.IncreaseStock(callCtx, existing.ProductID, existing.Quantity)
		cancel()
		if err != nil {
			return fmt.Errorf("restore stock before delete: %w", err)
		}
		log.Printf("[transaction] step restore done tx=%s product=%s qty=%d", id, existing.ProductID, existing.Quantity)
	}

	callCtx, cancel = s.boundedCtx(ctx)
	defer cancel()
	if err := s.repo.DeleteTransaction(callCtx, id); err != nil {
		log.Printf("[transaction] WARN: delete failed after stock restore tx=%s: %v", id, err)
		return err
	}
	log.Printf("[transaction] step delete done tx=%s", id)

	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		log.Printf("[transaction] WARN: dashboard cache invalidation failed: %v", err)
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, from time.Time, to time.Time, types []string) ([]domain.Transaction, error) {
	if to.IsZero() {
		to = time.Now().UTC().AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: empty date range", store.ErrValidation)
	}
	for _, t := range types {
		if t != domain.TxTypeIncome && t != domain.TxTypeExpense && t != domain.TxTypeSale {
			return nil, fmt.Errorf("%w: unknown transaction type %q", store.ErrValidation, t)
		}
	}
	return s.repo.ListTransactions(ctx, from, to, types)
}
