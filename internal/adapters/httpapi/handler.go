package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/stocktrail/stocktrail/internal/core/domain"
	"github.com/stocktrail/stocktrail/internal/core/usecase"
	"github.com/stocktrail/stocktrail/internal/metrics"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	sessionCtxKey   ctxKey = "session"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	auth      *usecase.AuthService
	inventory *usecase.InventoryService
	audit     *usecase.AuditService
	schemas   *requestSchemas
	log       *logrus.Logger
}

func NewHandler(auth *usecase.AuthService, inventory *usecase.InventoryService, audit *usecase.AuditService, log *logrus.Logger) (*Handler, error) {
	schemas, err := loadRequestSchemas()
	if err != nil {
		return nil, fmt.Errorf("load request schemas: %w", err)
	}
	return &Handler{auth: auth, inventory: inventory, audit: audit, schemas: schemas, log: log}, nil
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(h.log))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireSession)
		pr.Get("/auth/me", h.me)

		pr.Get("/inventory/", h.listItems)
		pr.Get("/inventory/stats", h.stats)
		pr.Post("/inventory/", h.createItem)
		pr.Get("/inventory/{id}", h.getItem)
		pr.Put("/inventory/{id}", h.updateItem)
		pr.Delete("/inventory/{id}", h.deleteItem)

		pr.Get("/audit/", h.listAudit)
		pr.Get("/audit/item/{id}", h.itemAudit)
	})

	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type itemCreateRequest struct {
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
}

type itemUpdateRequest struct {
	Name        *string  `json:"name"`
	SKU         *string  `json:"sku"`
	Description *string  `json:"description"`
	Quantity    *int64   `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Category    *string  `json:"category"`
	Location    *string  `json:"location"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type itemResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Description string  `json:"description,omitempty"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Category    string  `json:"category,omitempty"`
	Location    string  `json:"location,omitempty"`
	CreatedBy   int64   `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type statsResponse struct {
	TotalItems    int64   `json:"total_items"`
	TotalValue    float64 `json:"total_value"`
	LowStockCount int64   `json:"low_stock_count"`
	CategoryCount int64   `json:"category_count"`
}

type auditEntryResponse struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Action    string          `json:"action"`
	ItemID    int64           `json:"item_id"`
	ItemSKU   string          `json:"item_sku"`
	ActorID   int64           `json:"actor_id"`
	ActorName string          `json:"actor_name"`
	Changes   json.RawMessage `json:"changes"`
	Timestamp string          `json:"timestamp"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readValidatedBody(w, r, h.schemas.register)
	if !ok {
		return
	}

	var req registerRequest
	if err := json.Unmarshal(doc, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, err := h.auth.Register(r.Context(), domain.UserDraft{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	token, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrInactiveUser) {
			metrics.AuthFailuresTotal.Inc()
			writeError(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	user, err := h.auth.Me(r.Context(), session)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	skip, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	items, err := h.inventory.List(r.Context(), session, domain.ItemFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	result := make([]itemResponse, 0, len(items))
	for _, item := range items {
		result = append(result, toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	stats, err := h.inventory.Stats(r.Context(), session)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalItems:    stats.TotalItems,
		TotalValue:    stats.TotalValue,
		LowStockCount: stats.LowStockCount,
		CategoryCount: stats.CategoryCount,
	})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	item, err := h.inventory.Get(r.Context(), session, id)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	doc, ok := h.readValidatedBody(w, r, h.schemas.itemCreate)
	if !ok {
		return
	}

	var req itemCreateRequest
	if err := json.Unmarshal(doc, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	item, err := h.inventory.Create(r.Context(), session, domain.ItemDraft{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Category:    req.Category,
		Location:    req.Location,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	metrics.MutationsTotal.WithLabelValues(string(domain.ActionCreate)).Inc()
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	doc, ok := h.readValidatedBody(w, r, h.schemas.itemUpdate)
	if !ok {
		return
	}

	var req itemUpdateRequest
	if err := json.Unmarshal(doc, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	item, err := h.inventory.Update(r.Context(), session, id, domain.ItemPatch{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Category:    req.Category,
		Location:    req.Location,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	metrics.MutationsTotal.WithLabelValues(string(domain.ActionUpdate)).Inc()
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.inventory.Delete(r.Context(), session, id); err != nil {
		h.handleDomainError(w, err)
		return
	}

	metrics.MutationsTotal.WithLabelValues(string(domain.ActionDelete)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	skip, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	entries, err := h.audit.List(r.Context(), session, domain.AuditFilter{
		Action: domain.AuditAction(r.URL.Query().Get("action")),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toAuditResponses(entries)})
}

func (h *Handler) itemAudit(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	entries, err := h.audit.ListForItem(r.Context(), session, id)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toAuditResponses(entries)})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireSession validates the bearer token and stores the resulting session
// in the request context. Missing, malformed or expired tokens are all 401;
// role checks happen later, inside the usecases.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			metrics.AuthFailuresTotal.Inc()
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		session, err := h.auth.Validate(strings.TrimSpace(auth[7:]))
		if err != nil {
			metrics.AuthFailuresTotal.Inc()
			if errors.Is(err, domain.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) domain.Session {
	session, _ := ctx.Value(sessionCtxKey).(domain.Session)
	return session
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrDuplicateSKU),
		errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInactiveUser):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.log.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FullName:  user.FullName,
		Role:      string(user.Role),
		Active:    user.Active,
		CreatedAt: user.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: user.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toItemResponse(item domain.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		SKU:         item.SKU,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Category:    item.Category,
		Location:    item.Location,
		CreatedBy:   item.CreatedBy,
		CreatedAt:   item.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   item.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toAuditResponses(entries []domain.AuditEntry) []auditEntryResponse {
	result := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, auditEntryResponse{
			ID:        entry.ID,
			EventID:   entry.EventID,
			Action:    string(entry.Action),
			ItemID:    entry.ItemID,
			ItemSKU:   entry.ItemSKU,
			ActorID:   entry.ActorID,
			ActorName: entry.ActorName,
			Changes:   entry.Changes,
			Timestamp: entry.OccurredAt.UTC().Format(timeFormat),
		})
	}
	return result
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parsePagination(w http.ResponseWriter, r *http.Request) (skip, limit int, ok bool) {
	limit = 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, 0, false
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "skip must be integer")
			return 0, 0, false
		}
		skip = parsed
	}
	return skip, limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
