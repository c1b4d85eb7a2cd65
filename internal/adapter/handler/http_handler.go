package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/telemetry"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

type HTTPHandler struct {
	orderService   *service.OrderService
	catalogService *service.CatalogService
	logger         *zap.Logger
	metrics        *telemetry.Metrics
	gatherer       prometheus.Gatherer
}

type PlaceOrderHTTPRequest struct {
	UserID int64 `json:"user_id"`
	ItemID int64 `json:"item_id"`
	Count  int   `json:"count"`
}

type CartHTTPRequest struct {
	UserID int64             `json:"user_id"`
	Items  []domain.CartLine `json:"items"`
}

type CartHTTPResponse struct {
	Message string             `json:"message"`
	Orders  []domain.Placement `json:"orders"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHTTPHandler(
	orderService *service.OrderService,
	catalogService *service.CatalogService,
	logger *zap.Logger,
	metrics *telemetry.Metrics,
	gatherer prometheus.Gatherer,
) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		orderService:   orderService,
		catalogService: catalogService,
		logger:         logger,
		metrics:        metrics,
		gatherer:       gatherer,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.observe)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.CreateItem)
		r.Get("/", h.ListItems)
		r.Patch("/", h.PatchItems)
		r.Get("/count", h.CountItems)
		r.Get("/filter", h.FilterItems)
		r.Get("/{id}", h.GetItem)
		r.Patch("/{id}", h.PatchItem)
		r.Put("/{id}", h.ReplaceItem)
		r.Delete("/{id}", h.DeleteItem)
	})

	r.Post("/users", h.CreateUser)
	r.Get("/users", h.ListUsers)

	r.Get("/orders", h.ListOrders)
	r.Post("/orders", h.PlaceOrder)
	r.Post("/cart", h.PlaceCartOrder)

	return r
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID <= 0 || req.ItemID <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "user_id and item_id must be positive")
		return
	}

	placement, err := h.orderService.PlaceOrder(r.Context(), service.OrderRequest{
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		Count:          req.Count,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, placement)
}

func (h *HTTPHandler) PlaceCartOrder(w http.ResponseWriter, r *http.Request) {
	var req CartHTTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "user_id must be positive")
		return
	}

	result, err := h.orderService.PlaceCartOrder(r.Context(), service.CartRequest{
		UserID:         req.UserID,
		Lines:          req.Items,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CartHTTPResponse{
		Message: fmt.Sprintf("%d orders created successfully", result.CreatedCount),
		Orders:  result.Orders,
	})
}

func (h *HTTPHandler) FilterItems(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var expr *service.ItemExpr
	if src := r.URL.Query().Get("expr"); src != "" {
		if expr, err = service.CompileItemExpr(src); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	items, err := h.catalogService.FilterItems(r.Context(), criteria, expr)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var item domain.Item
	if !decodeBody(w, r, &item) {
		return
	}
	created, err := h.catalogService.CreateItem(r.Context(), item)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalogService.ListItems(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) CountItems(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	n, err := h.catalogService.CountItems(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *HTTPHandler) PatchItems(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var patch domain.ItemPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	n, err := h.catalogService.PatchItems(r.Context(), criteria, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := h.catalogService.GetItem(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) PatchItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch domain.ItemPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := h.catalogService.PatchItem(r.Context(), id, patch); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ReplaceItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var item domain.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if err := h.catalogService.ReplaceItem(r.Context(), id, item); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.catalogService.DeleteItem(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if !decodeBody(w, r, &user) {
		return
	}
	created, err := h.catalogService.CreateUser(r.Context(), user)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.catalogService.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.catalogService.ListOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "duplicate_request", err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseCriteria reads the item filter query parameters. Absent parameters leave the
// matching bound nil.
func parseCriteria(r *http.Request) (domain.ItemCriteria, error) {
	q := r.URL.Query()
	criteria := domain.ItemCriteria{Name: q.Get("name")}

	var err error
	if criteria.MinPrice, err = floatParam(q.Get("minPrice"), "minPrice"); err != nil {
		return domain.ItemCriteria{}, err
	}
	if criteria.MaxPrice, err = floatParam(q.Get("maxPrice"), "maxPrice"); err != nil {
		return domain.ItemCriteria{}, err
	}
	if criteria.MinStock, err = intParam(q.Get("minStock"), "minStock"); err != nil {
		return domain.ItemCriteria{}, err
	}
	if criteria.MaxStock, err = intParam(q.Get("maxStock"), "maxStock"); err != nil {
		return domain.ItemCriteria{}, err
	}
	return criteria, nil
}

func floatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.Invalid("%s must be a number, got %q", name, raw)
	}
	return &v, nil
}

func intParam(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, domain.Invalid("%s must be an integer, got %q", name, raw)
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
