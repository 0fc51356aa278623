package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/store"
)

const topN = 5

const (
	profitHighThresholdCents   = 500000
	profitMediumThresholdCents = 200000
)

// DashboardStats derives the period revenue cards and top-N rankings from
// transaction history, using the same temporal windows as the target
// recalculator. The result is served from cache when fresh.
func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, ok, err := s.cache.Get(ctx, dashboardCacheKey); err != nil {
		log.Printf("[dashboard] WARN: cache read failed: %v", err)
	} else if ok {
		return *cached, nil
	}

	now := time.Now().UTC()
	stats := domain.DashboardStats{GeneratedAt: now.Format(time.RFC3339)}

	periods := []struct {
		period string
		dest   *domain.PeriodRevenue
	}{
		{domain.PeriodDaily, &stats.Today},
		{domain.PeriodWeekly, &stats.Week},
		{domain.PeriodMonthly, &stats.Month},
		{domain.PeriodYearly, &stats.Year},
	}
	for _, p := range periods {
		start, end, err := periodWindow(p.period, now)
		if err != nil {
			return domain.DashboardStats{}, err
		}

		callCtx, cancel := s.boundedCtx(ctx)
		revenue, err := s.repo.SumTransactionAmounts(callCtx, start, end, []string{domain.TxTypeIncome, domain.TxTypeSale})
		cancel()
		if err != nil {
			return domain.DashboardStats{}, err
		}

		callCtx, cancel = s.boundedCtx(ctx)
		expense, err := s.repo.SumTransactionAmounts(callCtx, start, end, []string{domain.TxTypeExpense})
		cancel()
		if err != nil {
			return domain.DashboardStats{}, err
		}

		p.dest.RevenueCents = revenue
		p.dest.ExpenseCents = expense
	}

	callCtx, cancel := s.boundedCtx(ctx)
	unpaid, err := s.repo.ListReceivables(callCtx, domain.ReceivableUnpaid)
	cancel()
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.OpenReceivables = len(unpaid)

	callCtx, cancel = s.boundedCtx(ctx)
	pending, err := s.repo.ListServiceTickets(callCtx, domain.TicketPending)
	cancel()
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.PendingServices = len(pending)

	// Rankings cover the current year window.
	yearStart, yearEnd, _ := periodWindow(domain.PeriodYearly, now)
	callCtx, cancel = s.boundedCtx(ctx)
	transactions, err := s.repo.ListTransactions(callCtx, yearStart, yearEnd, []string{domain.TxTypeIncome, domain.TxTypeSale})
	cancel()
	if err != nil {
		return domain.DashboardStats{}, err
	}

	callCtx, cancel = s.boundedCtx(ctx)
	products, err := s.repo.ListProducts(callCtx)
	cancel()
	if err != nil {
		return domain.DashboardStats{}, err
	}
	productNames := make(map[string]string, len(products))
	for _, p := range products {
		productNames[p.ID] = p.Name
	}

	stats.TopProducts = topProducts(transactions, productNames)
	stats.TopCustomers = topCustomers(transactions)
	stats.CategoryBreakdown = topCategories(transactions)

	if err := s.cache.Set(ctx, dashboardCacheKey, &stats, s.dashboardTTL); err != nil {
		log.Printf("[dashboard] WARN: cache write failed: %v", err)
	}
	return stats, nil
}

func topProducts(transactions []domain.Transaction, names map[string]string) []domain.ProductRevenue {
	order := make([]string, 0, 16)
	byProduct := make(map[string]*domain.ProductRevenue, 16)
	for _, tx := range transactions {
		if tx.Type != domain.TxTypeSale || tx.ProductID == "" {
			continue
		}
		entry, ok := byProduct[tx.ProductID]
		if !ok {
			entry = &domain.ProductRevenue{ProductID: tx.ProductID, Name: names[tx.ProductID]}
			byProduct[tx.ProductID] = entry
			order = append(order, tx.ProductID)
		}
		entry.RevenueCents += tx.AmountCents
		entry.UnitsSold += tx.Quantity
	}

	ranked := make([]domain.ProductRevenue, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, *byProduct[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RevenueCents > ranked[j].RevenueCents
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func topCustomers(transactions []domain.Transaction) []domain.CustomerSpend {
	order := make([]string, 0, 16)
	byPhone := make(map[string]*domain.CustomerSpend, 16)
	for _, tx := range transactions {
		if tx.Type != domain.TxTypeSale || tx.CustomerPhone == "" {
			continue
		}
		entry, ok := byPhone[tx.CustomerPhone]
		if !ok {
			entry = &domain.CustomerSpend{Phone: tx.CustomerPhone, Name: strings.TrimSpace(tx.CustomerName + " " + tx.CustomerSurname)}
			byPhone[tx.CustomerPhone] = entry
			order = append(order, tx.CustomerPhone)
		}
		entry.SpentCents += tx.AmountCents
	}

	ranked := make([]domain.CustomerSpend, 0, len(order))
	for _, phone := range order {
		ranked = append(ranked, *byPhone[phone])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SpentCents > ranked[j].SpentCents
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func topCategories(transactions []domain.Transaction) []domain.CategoryRevenue {
	order := make([]string, 0, 16)
	byCategory := make(map[string]*domain.CategoryRevenue, 16)
	for _, tx := range transactions {
		if tx.Category == "" {
			continue
		}
		entry, ok := byCategory[tx.Category]
		if !ok {
			entry = &domain.CategoryRevenue{Category: tx.Category}
			byCategory[tx.Category] = entry
			order = append(order, tx.Category)
		}
		entry.RevenueCents += tx.AmountCents
	}

	ranked := make([]domain.CategoryRevenue, 0, len(order))
	for _, category := range order {
		ranked = append(ranked, *byCategory[category])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RevenueCents > ranked[j].RevenueCents
	})
	return ranked
}

// DashboardCSV renders the dashboard summary as CSV rows for export.
func (s *Service) DashboardCSV(ctx context.Context) ([]byte, error) {
	stats, err := s.DashboardStats(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"section", "key", "revenue_cents", "expense_cents"})
	for _, row := range []struct {
		key string
		rev domain.PeriodRevenue
	}{
		{"today", stats.Today},
		{"week", stats.Week},
		{"month", stats.Month},
		{"year", stats.Year},
	} {
		_ = w.Write([]string{"period", row.key, strconv.FormatInt(row.rev.RevenueCents, 10), strconv.FormatInt(row.rev.ExpenseCents, 10)})
	}
	_ = w.Write([]string{"counter", "open_receivables", strconv.Itoa(stats.OpenReceivables), ""})
	_ = w.Write([]string{"counter", "pending_services", strconv.Itoa(stats.PendingServices), ""})
	for _, p := range stats.TopProducts {
		_ = w.Write([]string{"top_product", p.Name, strconv.FormatInt(p.RevenueCents, 10), strconv.Itoa(p.UnitsSold)})
	}
	for _, c := range stats.TopCustomers {
		_ = w.Write([]string{"top_customer", c.Phone, strconv.FormatInt(c.SpentCents, 10), ""})
	}
	for _, c := range stats.CategoryBreakdown {
		_ = w.Write([]string{"category", c.Category, strconv.FormatInt(c.RevenueCents, 10), ""})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CustomerProfile classifies a customer from their accumulated ledger and
// sale history.
func (s *Service) CustomerProfile(ctx context.Context, phone string) (domain.CustomerProfile, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.CustomerProfile{}, fmt.Errorf("%w: phone required", store.ErrValidation)
	}

	callCtx, cancel := s.boundedCtx(ctx)
	customer, err := s.repo.GetCustomerByPhone(callCtx, phone)
	cancel()
	if err != nil {
		return domain.CustomerProfile{}, err
	}

	callCtx, cancel = s.boundedCtx(ctx)
	sales, err := s.repo.ListSalesByPhone(callCtx, phone)
	cancel()
	if err != nil {
		return domain.CustomerProfile{}, err
	}

	callCtx, cancel = s.boundedCtx(ctx)
	serviceCosts, err := s.repo.SumCompletedServiceCosts(callCtx, phone)
	cancel()
	if err != nil {
		return domain.CustomerProfile{}, err
	}

	return domain.CustomerProfile{
		Customer:           *customer,
		RiskLevel:          riskLevel(sales, time.Now().UTC()),
		LoyaltyTier:        loyaltyTier(customer.LoyaltyPoints),
		Profitability:      profitability(customer.TotalSpentCents),
		LifetimeValueCents: customer.TotalSpentCents + serviceCosts,
		SaleCount:          len(sales),
	}, nil
}

func riskLevel(sales []domain.Transaction, now time.Time) string {
	if len(sales) == 0 {
		return domain.RiskNew
	}
	last := sales[0].CreatedAt
	for _, sale := range sales[1:] {
		if sale.CreatedAt.After(last) {
			last = sale.CreatedAt
		}
	}
	days := now.Sub(last).Hours() / 24
	switch {
	case days > 180:
		return domain.RiskHigh
	case days > 90:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func loyaltyTier(points int64) string {
	switch {
	case points > 1000:
		return domain.TierChampion
	case points > 500:
		return domain.TierLoyal
	case points > 100:
		return domain.TierRegular
	default:
		return domain.TierNew
	}
}

func profitability(totalSpentCents int64) string {
	switch {
	case totalSpentCents > profitHighThresholdCents:
		return domain.ProfitHigh
	case totalSpentCents > profitMediumThresholdCents:
		return domain.ProfitMedium
	default:
		return domain.ProfitLow
	}
}
