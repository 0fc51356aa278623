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

func validTicketStatus(status string) bool {
	switch status {
	case domain.TicketPending, domain.TicketInProgress, domain.TicketCompleted, domain.TicketCancelled:
		return true
	}
	return false
}

// canTransition encodes the ticket state machine. Completed and cancelled
// are terminal.
func canTransition(from string, to string) bool {
	switch from {
	case domain.TicketPending:
		return to == domain.TicketInProgress || to == domain.TicketCompleted || to == domain.TicketCancelled
	case domain.TicketInProgress:
		return to == domain.TicketCompleted || to == domain.TicketCancelled
	default:
		return false
	}
}

func (s *Service) CreateServiceTicket(ctx context.Context, req domain.ServiceTicketCreateRequest) (domain.ServiceTicket, error) {
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.Problem) == "" {
		return domain.ServiceTicket{}, fmt.Errorf("%w: customer name and problem are required", store.ErrValidation)
	}
	if req.LaborCostCents < 0 || req.PartsCostCents < 0 {
		return domain.ServiceTicket{}, fmt.Errorf("%w: costs must not be negative", store.ErrValidation)
	}

	callCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	created, err := s.repo.CreateServiceTicket(callCtx, domain.ServiceTicket{
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerSurname: strings.TrimSpace(req.CustomerSurname),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		DeviceBrand:     strings.TrimSpace(req.DeviceBrand),
		DeviceModel:     strings.TrimSpace(req.DeviceModel),
		SerialNumber:    strings.TrimSpace(req.SerialNumber),
		Problem:         strings.TrimSpace(req.Problem),
		LaborCostCents:  req.LaborCostCents,
		PartsCostCents:  req.PartsCostCents,
		Status:          domain.TicketPending,
	})
	if err != nil {
		return domain.ServiceTicket{}, err
	}
	return *created, nil
}

func (s *Service) ListServiceTickets(ctx context.Context, status string) ([]domain.ServiceTicket, error) {
	if status != "" && !validTicketStatus(status) {
		return nil, fmt.Errorf("%w: unknown ticket status %q", store.ErrValidation, status)
	}
	return s.repo.ListServiceTickets(ctx, status)
}

// UpdateServiceTicket edits ticket fields and drives the state machine.
// Entering completed with a positive cost creates the service income
// transaction exactly once, keyed on the ticket ID, and kicks off a target
// recalculation. Saving a ticket that is already completed does not
// re-trigger anything.
func (s *Service) UpdateServiceTicket(ctx context.Context, id string, req domain.ServiceTicketUpdateRequest) (domain.ServiceTicket, error) {
	callCtx, cancel := s.boundedCtx(ctx)
	existing, err := s.repo.GetServiceTicketByID(callCtx, id)
	cancel()
	if err != nil {
		return domain.ServiceTicket{}, err
	}

	updated := *existing
	enteringCompleted := false
	if req.Status != nil && *req.Status != existing.Status {
		if !validTicketStatus(*req.Status) {
			return domain.ServiceTicket{}, fmt.Errorf("%w: unknown ticket status %q", store.ErrValidation, *req.Status)
		}
		if !canTransition(existing.Status, *req.Status) {
			return domain.ServiceTicket{}, fmt.Errorf("%w: illegal transition %s -> %s", store.ErrConflict, existing.Status, *req.Status)
		}
		updated.Status = *req.Status
		enteringCompleted = *req.Status == domain.TicketCompleted
	}
	if req.Solution != nil {
		updated.Solution = strings.TrimSpace(*req.Solution)
	}
	if req.Problem != nil {
		problem := strings.TrimSpace(*req.Problem)
		if problem == "" {
			return domain.ServiceTicket{}, fmt.Errorf("%w: problem must not be empty", store.ErrValidation)
		}
		updated.Problem = problem
	}
	if req.LaborCostCents != nil {
		if *req.LaborCostCents < 0 {
			return domain.ServiceTicket{}, fmt.Errorf("%w: labor cost must not be negative", store.ErrValidation)
		}
		updated.LaborCostCents = *req.LaborCostCents
	}
	if req.PartsCostCents != nil {
		if *req.PartsCostCents < 0 {
			return domain.ServiceTicket{}, fmt.Errorf("%w: parts cost must not be negative", store.ErrValidation)
		}
		updated.PartsCostCents = *req.PartsCostCents
	}

	if enteringCompleted {
		now := time.Now().UTC()
		updated.CompletedDate = &now
	}

	callCtx, cancel = s.boundedCtx(ctx)
	saved, err := s.repo.UpdateServiceTicket(callCtx, updated)
	cancel()
	if err != nil {
		return domain.ServiceTicket{}, err
	}

	if enteringCompleted && saved.CostCents() > 0 {
		if err := s.recordServiceIncome(ctx, *saved); err != nil {
			log.Printf("[service-ticket] WARN: income creation failed ticket=%s: %v", saved.ID, err)
			return *saved, fmt.Errorf("service income: %w", err)
		}
		if _, err := s.RecalculateTargets(ctx); err != nil {
			log.Printf("[service-ticket] WARN: target recalculation failed after completion ticket=%s: %v", saved.ID, err)
		}
	}

	return *saved, nil
}

// recordServiceIncome writes the completion income transaction, using the
// ticket ID as the idempotency key so repeated completion saves cannot
// double-book the revenue.
func (s *Service) recordServiceIncome(ctx context.Context, ticket domain.ServiceTicket) error {
	callCtx, cancel := s.boundedCtx(ctx)
	_, err := s.repo.FindTransactionByServiceID(callCtx, ticket.ID)
	cancel()
	if err == nil {
		log.Printf("[service-ticket] income already recorded ticket=%s, skipping", ticket.ID)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	description := fmt.Sprintf("Service: %s %s for %s", ticket.DeviceBrand, ticket.DeviceModel, ticket.CustomerName)
	callCtx, cancel = s.boundedCtx(ctx)
	defer cancel()
	created, err := s.repo.CreateTransaction(callCtx, domain.Transaction{
		Type:                domain.TxTypeIncome,
		AmountCents:         ticket.CostCents(),
		OriginalAmountCents: ticket.CostCents(),
		Description:         description,
		Category:            "service",
		CustomerName:        ticket.CustomerName,
		CustomerSurname:     ticket.CustomerSurname,
		CustomerPhone:       ticket.CustomerPhone,
		PaymentType:         domain.PaymentCash,
		ServiceID:           ticket.ID,
	})
	if err != nil {
		return err
	}

	s.metrics.ServiceIncomeCreated.Inc()
	log.Printf("[service-ticket] income recorded ticket=%s tx=%s amount=%d", ticket.ID, created.ID, created.AmountCents)
	return nil
}
