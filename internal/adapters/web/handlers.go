package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	db        Pinger
	log       logrus.FieldLogger
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, db Pinger, log logrus.FieldLogger, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		db:        db,
		log:       log,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes ──────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Sales
		r.Post("/api/sales", h.apiCreateSale)
		r.Get("/api/sales", h.apiListSales)
		r.Get("/api/sales/{id}", h.apiGetSale)
		r.Post("/api/sales/{id}/cancel", h.apiCancelSale)

		// Purchases
		r.Post("/api/purchases", h.apiCreatePurchase)
		r.Get("/api/purchases", h.apiListPurchases)
		r.Get("/api/purchases/{id}", h.apiGetPurchase)
		r.Post("/api/purchases/{id}/cancel", h.apiCancelPurchase)

		// Quotes
		r.Post("/api/quotes", h.apiCreateQuote)
		r.Get("/api/quotes/{id}", h.apiGetQuote)
		r.Put("/api/quotes/{id}/lines", h.apiReplaceQuoteLines)
		r.Post("/api/quotes/{id}/void", h.apiVoidQuote)

		// Stock
		r.Get("/api/stock", h.apiListStock)
		r.Get("/api/stock/low", h.apiListLowStock)
		r.Get("/api/stock/movements", h.apiListStockMovements)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(core.RoleAdmin, core.RoleManager))
			r.Post("/api/stock/adjustments", h.apiAdjustStock)
			r.Post("/api/stock/transfers", h.apiTransferStock)
		})

		// Cash registers
		r.Post("/api/cash-registers", h.apiOpenCashRegister)
		r.Get("/api/cash-registers/current", h.apiCurrentCashRegister)
		r.Get("/api/cash-registers/{id}", h.apiGetCashRegister)
		r.Get("/api/cash-registers/{id}/movements", h.apiListCashMovements)
		r.Post("/api/cash-registers/{id}/movements", h.apiRecordCashMovement)
		r.Post("/api/cash-registers/{id}/close", h.apiCloseCashRegister)

		// Customer accounts
		r.Get("/api/customers/{id}/account", h.apiGetCustomerAccount)
		r.Get("/api/customers/{id}/entries", h.apiListCustomerEntries)
		r.Post("/api/customers/{id}/payments", h.apiRecordCustomerPayment)
		r.With(RequireRole(core.RoleAdmin, core.RoleManager)).
			Post("/api/customers/{id}/charges", h.apiRecordCustomerCharge)

		// Reconciliation
		r.Get("/api/reconciliation", h.apiCheckReconciliation)
		r.Get("/api/reconciliation/items", h.apiListReconciliationItems)
		r.With(RequireRole(core.RoleAdmin, core.RoleManager)).
			Post("/api/reconciliation/items/{id}/resolve", h.apiResolveReconciliationItem)
	})

	h.router = r
	return r
}

// health reports service status and database reachability.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
			return
		}
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter. It writes a 400 and returns
// false when the parameter is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, fmt.Sprintf("invalid %s", name), "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryParams collects the first parse error across several query parameters so
// handlers can report it once.
type queryParams struct {
	r   *http.Request
	err error
}

func (q *queryParams) intParam(name string) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		q.err = fmt.Errorf("invalid %s: %q", name, raw)
		return 0
	}
	return v
}

func (q *queryParams) strParam(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *queryParams) boolParam(name string) bool {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.err != nil {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v
}

// timeParam parses RFC 3339 timestamps or plain dates. A plain date used as an upper
// bound (endOfDay) covers that whole day.
func (q *queryParams) timeParam(name string, endOfDay bool) time.Time {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.err != nil {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		q.err = fmt.Errorf("invalid %s: %q (want YYYY-MM-DD or RFC 3339)", name, raw)
		return time.Time{}
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func (q *queryParams) dateRange() core.DateRange {
	return core.DateRange{From: q.timeParam("from", false), To: q.timeParam("to", true)}
}

// ok writes a 400 for the first parse error and reports whether parsing succeeded.
func (q *queryParams) ok(w http.ResponseWriter) bool {
	if q.err != nil {
		writeError(w, q.r, q.err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
