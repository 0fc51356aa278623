package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"tokomitra/backend/internal/store"
)

func TestDecreaseStockGuardsAgainstShortfall(t *testing.T) {
	databaseURL := os.Getenv("TOKOMITRA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOMITRA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	productID := fmt.Sprintf("prd-stock-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, buy_price_cents, sell_price_cents, stock, min_stock, created_at, updated_at)
		VALUES ($1, 'Stock IT Product', 'accessory', 3000, 9900, 5, 1, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if err := s.DecreaseStock(ctx, productID, 3); err != nil {
		t.Fatalf("decrease stock: %v", err)
	}

	// Only 2 left, so a decrement of 3 must fail without changing stock.
	err = s.DecreaseStock(ctx, productID, 3)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 2 {
		t.Fatalf("expected stock 2 after guard, got %d", stock)
	}

	if err := s.IncreaseStock(ctx, productID, 4); err != nil {
		t.Fatalf("increase stock: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 6 {
		t.Fatalf("expected stock 6 after restock, got %d", stock)
	}

	if err := s.DecreaseStock(ctx, "prd-missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}
