package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/store"
)

// loyaltyPointDivisorCents awards one point per 10 currency units.
const loyaltyPointDivisorCents = 1000

const receivableDefaultTerm = 30 * 24 * time.Hour

// syncCustomerLedger upserts the customer by exact phone match and opens a
// receivable for non-cash sales. Purely additive: edits and deletes of the
// originating sale never reverse these accumulations.
func (s *Service) syncCustomerLedger(ctx context.Context, req domain.SaleCreateRequest, finalAmountCents int64) error {
	phone := strings.TrimSpace(req.CustomerPhone)
	name := strings.TrimSpace(req.CustomerName)
	now := time.Now().UTC()
	points := finalAmountCents / loyaltyPointDivisorCents

	callCtx, cancel := s.boundedCtx(ctx)
	existing, err := s.repo.GetCustomerByPhone(callCtx, phone)
	cancel()

	var customer *domain.Customer
	switch {
	case err == nil:
		updated := *existing
		updated.VisitCount++
		updated.TotalSpentCents += finalAmountCents
		updated.LoyaltyPoints += points
		updated.LastVisit = &now
		updated.LastPurchaseDate = &now

		callCtx, cancel := s.boundedCtx(ctx)
		customer, err = s.repo.UpdateCustomer(callCtx, updated)
		cancel()
		if err != nil {
			return err
		}
	case errors.Is(err, store.ErrNotFound):
		callCtx, cancel := s.boundedCtx(ctx)
		customer, err = s.repo.CreateCustomer(callCtx, domain.Customer{
			Name:             name,
			Surname:          strings.TrimSpace(req.CustomerSurname),
			Phone:            phone,
			LoyaltyPoints:    points,
			TotalSpentCents:  finalAmountCents,
			VisitCount:       1,
			LastVisit:        &now,
			LastPurchaseDate: &now,
		})
		cancel()
		if err != nil {
			return err
		}
	default:
		return err
	}

	if req.PaymentType == domain.PaymentCash {
		return nil
	}

	dueDate := now.Add(receivableDefaultTerm)
	if strings.TrimSpace(req.DueDate) != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", req.DueDate)
		}
		if err != nil {
			return fmt.Errorf("%w: bad due date %q", store.ErrValidation, req.DueDate)
		}
		dueDate = parsed.UTC()
	}

	callCtx, cancel = s.boundedCtx(ctx)
	defer cancel()
	_, err = s.repo.CreateReceivable(callCtx, domain.Receivable{
		CustomerID:    customer.ID,
		CustomerPhone: customer.Phone,
		AmountCents:   finalAmountCents,
		Type:          domain.ReceivableTypeReceivable,
		Status:        domain.ReceivableUnpaid,
		DueDate:       dueDate,
	})
	if err != nil {
		return err
	}
	log.Printf("[customer] receivable opened phone=%s amount=%d due=%s", phone, finalAmountCents, dueDate.Format("2006-01-02"))
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) ListReceivables(ctx context.Context, status string) ([]domain.Receivable, error) {
	if status != "" && status != domain.ReceivableUnpaid && status != domain.ReceivablePaid {
		return nil, fmt.Errorf("%w: unknown receivable status %q", store.ErrValidation, status)
	}
	return s.repo.ListReceivables(ctx, status)
}

func (s *Service) SettleReceivable(ctx context.Context, id string) (domain.Receivable, error) {
	callCtx, cancel := s.boundedCtx(ctx)
	existing, err := s.repo.GetReceivableByID(callCtx, id)
	cancel()
	if err != nil {
		return domain.Receivable{}, err
	}
	if existing.Status == domain.ReceivablePaid {
		return domain.Receivable{}, fmt.Errorf("%w: receivable already settled", store.ErrConflict)
	}

	callCtx, cancel = s.boundedCtx(ctx)
	defer cancel()
	settled, err := s.repo.UpdateReceivableStatus(callCtx, id, domain.ReceivablePaid)
	if err != nil {
		return domain.Receivable{}, err
	}
	log.Printf("[customer] receivable settled id=%s amount=%d", settled.ID, settled.AmountCents)
	return *settled, nil
}
