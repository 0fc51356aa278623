package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokomitra/backend/internal/cache"
	"tokomitra/backend/internal/domain"
	"tokomitra/backend/internal/metrics"
	"tokomitra/backend/internal/service"
	"tokomitra/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	m := metrics.New()
	svc := service.New(repo, cache.NoopDashboardCache{}, m, 30*time.Second, 5*time.Second)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, m, "*")
}

// doJSON issues an authenticated JSON request against the full handler chain
// and returns the recorder.
func doJSON(t *testing.T, api *API, method string, path string, token string, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")
	if token == "" {
		t.Fatalf("expected non-empty access token")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_ListWithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestCreateProduct_StaffForbidden(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:           "Car Charger",
		Category:       "accessory",
		SellPriceCents: 12900,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff product create, got %d", rec.Code)
	}
}

func TestCreateProduct_AdminSucceeds(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:           "Car Charger",
		Category:       "accessory",
		BuyPriceCents:  4500,
		SellPriceCents: 12900,
		InitialStock:   30,
		MinStock:       5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRecordSale_PersistsTransaction(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/transactions/sale", token, csrf, domain.SaleCreateRequest{
		Lines:         []domain.SaleLine{{ProductID: "prd-case-01", Qty: 2}},
		DiscountValue: 10,
		DiscountType:  domain.DiscountPercent,
		PaymentType:   domain.PaymentCash,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Transaction domain.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	// 2 x 9900 with 10% off.
	if body.Transaction.AmountCents != 17820 {
		t.Fatalf("expected final amount 17820, got %d", body.Transaction.AmountCents)
	}
}

func TestRecordSale_InsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	// Seeded prd-screen-a52 has 12 units.
	rec := doJSON(t, api, http.MethodPost, "/api/v1/transactions/sale", token, csrf, domain.SaleCreateRequest{
		Lines:       []domain.SaleLine{{ProductID: "prd-screen-a52", Qty: 999}},
		PaymentType: domain.PaymentCash,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// The transaction is persisted before the stock step, so the conflict
	// response still carries the recorded transaction.
	var body struct {
		Error       string             `json:"error"`
		Transaction domain.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Transaction.ID == "" {
		t.Fatalf("expected persisted transaction in conflict response, got %s", rec.Body.String())
	}
}

func TestRecordSale_UnknownProductReturns404(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/transactions/sale", token, csrf, domain.SaleCreateRequest{
		Lines:       []domain.SaleLine{{ProductID: "prd-nope", Qty: 1}},
		PaymentType: domain.PaymentCash,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRecordSale_BadDiscountReturns400(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/transactions/sale", token, csrf, domain.SaleCreateRequest{
		Lines:         []domain.SaleLine{{ProductID: "prd-case-01", Qty: 1}},
		DiscountValue: 150,
		DiscountType:  domain.DiscountPercent,
		PaymentType:   domain.PaymentCash,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDeleteTransaction_RequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodDelete, "/api/v1/transactions/tx-any", token, csrf, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff delete, got %d", rec.Code)
	}
}

func TestServiceTicketLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/services", token, csrf, domain.ServiceTicketCreateRequest{
		CustomerName:   "Dewi",
		CustomerPhone:  "+62811111111",
		DeviceBrand:    "Samsung",
		DeviceModel:    "A52",
		Problem:        "cracked screen",
		LaborCostCents: 25000,
		PartsCostCents: 159900,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create ticket: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Service domain.ServiceTicket `json:"service"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}

	completed := domain.TicketCompleted
	rec = doJSON(t, api, http.MethodPatch, "/api/v1/services/"+created.Service.ID, token, csrf, domain.ServiceTicketUpdateRequest{
		Status: &completed,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete ticket: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Completed is terminal, so reopening must be rejected.
	inProgress := domain.TicketInProgress
	rec = doJSON(t, api, http.MethodPatch, "/api/v1/services/"+created.Service.ID, token, csrf, domain.ServiceTicketUpdateRequest{
		Status: &inProgress,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reopen ticket: expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestTargetCreateAndRecalculateOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/targets", token, csrf, domain.TargetCreateRequest{
		Title:             "Monthly revenue",
		TargetAmountCents: 100000,
		Period:            domain.PeriodMonthly,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create target: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/targets/recalculate", token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recalculate: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Targets []domain.Target `json:"targets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode targets: %v", err)
	}
	if len(body.Targets) != 1 {
		t.Fatalf("expected 1 recalculated target, got %d", len(body.Targets))
	}
}

func TestSettleUnknownReceivableReturns404(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/receivables/rcv-missing/settle", token, csrf, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCustomerProfileOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/transactions/sale", token, csrf, domain.SaleCreateRequest{
		Lines:         []domain.SaleLine{{ProductID: "prd-charger-01", Qty: 1}},
		CustomerName:  "Budi",
		CustomerPhone: "+62812222222",
		PaymentType:   domain.PaymentCash,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/customers/+62812222222/profile", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Profile domain.CustomerProfile `json:"profile"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if body.Profile.Customer.Phone != "+62812222222" {
		t.Fatalf("unexpected profile phone %q", body.Profile.Customer.Phone)
	}
	if body.Profile.SaleCount != 1 {
		t.Fatalf("expected 1 sale in profile, got %d", body.Profile.SaleCount)
	}
}

func TestDashboardJSONAndCSV(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/dashboard", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard json: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/dashboard?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard csv: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("expected text/csv content type, got %q", got)
	}
}

func TestListTransactionsRejectsBadTimeParam(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/transactions?from=not-a-time", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
