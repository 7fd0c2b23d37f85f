package variant

import (
	"context"
	"net/http"

	"gocatalog/internal/api/respond"
	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/middleware"
)

// VariantService define o contrato que o Handler espera da camada de Serviço.
type VariantService interface {
	GenerateVariants(ctx context.Context, req domain.GenerateRequest) (*domain.BatchReport, error)
	BulkCreate(ctx context.Context, proposals []domain.VariantProposal) (*domain.BatchReport, error)
	GetVariant(ctx context.Context, id string) (domain.Variant, error)
	UpdateVariant(ctx context.Context, id string, patch domain.VariantPatch) (*domain.VariantMutation, error)
	BulkUpdateFields(ctx context.Context, ids []string, patch domain.VariantPatch) (*domain.BulkUpdateReport, error)
	DeleteVariant(ctx context.Context, id string) (*domain.VariantMutation, error)
	AdjustStock(ctx context.Context, id string, delta int) (domain.Variant, error)
	ReorderVariants(ctx context.Context, productID string, orderedIDs []string) error
	RefreshAggregate(ctx context.Context, productID string) (domain.Product, error)
}

// Handler agrupa os endpoints de variantes.
type Handler struct {
	Service VariantService
	resp    *respond.Responder
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Responder.
func NewHandler(svc VariantService, resp *respond.Responder) *Handler {
	return &Handler{Service: svc, resp: resp}
}

func (h *Handler) audit(r *http.Request, action string, fields map[string]interface{}) {
	if claims, ok := middleware.GetUserClaimsFromContext(r.Context()); ok {
		fields["user_id"] = claims.UserID
	}
	h.resp.Logger.Info(action, fields)
}

// GenerateHandler lida com POST /v1/products/{id}/variants/generate.
func (h *Handler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}
	req.ProductID = r.PathValue("id")

	h.audit(r, "Geração de variantes solicitada.", map[string]interface{}{"product_id": req.ProductID, "groups": len(req.Groups)})
	report, err := h.Service.GenerateVariants(r.Context(), req)
	h.resp.Handle(w, r, report, err, batchStatus(report))
}

// BulkCreateHandler lida com POST /v1/variants/bulk.
func (h *Handler) BulkCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkCreateRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}

	h.audit(r, "Criação em lote solicitada.", map[string]interface{}{"proposals": len(req.Proposals)})
	report, err := h.Service.BulkCreate(r.Context(), req.Proposals)
	h.resp.Handle(w, r, report, err, batchStatus(report))
}

// GetHandler lida com GET /v1/variants/{id}.
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.GetVariant(r.Context(), r.PathValue("id"))
	h.resp.Handle(w, r, v, err, http.StatusOK)
}

// UpdateHandler lida com PATCH /v1/variants/{id}.
func (h *Handler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var patch domain.VariantPatch
	if err := h.resp.Decode(w, r, &patch); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}
	result, err := h.Service.UpdateVariant(r.Context(), r.PathValue("id"), patch)
	h.resp.Handle(w, r, result, err, http.StatusOK)
}

// BulkUpdateHandler lida com PATCH /v1/variants.
func (h *Handler) BulkUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkUpdateRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}

	h.audit(r, "Atualização em massa solicitada.", map[string]interface{}{"variants": len(req.VariantIDs)})
	report, err := h.Service.BulkUpdateFields(r.Context(), req.VariantIDs, req.Patch)
	h.resp.Handle(w, r, report, err, http.StatusOK)
}

// DeleteHandler lida com DELETE /v1/variants/{id}.
func (h *Handler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.DeleteVariant(r.Context(), r.PathValue("id"))
	h.resp.Handle(w, r, result, err, http.StatusOK)
}

// AdjustStockHandler lida com POST /v1/variants/{id}/stock.
func (h *Handler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustmentRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}
	v, err := h.Service.AdjustStock(r.Context(), r.PathValue("id"), req.Delta)
	h.resp.Handle(w, r, v, err, http.StatusOK)
}

// ReorderHandler lida com PUT /v1/products/{id}/variants/order.
func (h *Handler) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReorderRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}
	err := h.Service.ReorderVariants(r.Context(), r.PathValue("id"), req.VariantIDs)
	h.resp.Handle(w, r, nil, err, http.StatusNoContent)
}

// RefreshAggregateHandler lida com POST /v1/products/{id}/aggregate.
func (h *Handler) RefreshAggregateHandler(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.RefreshAggregate(r.Context(), r.PathValue("id"))
	h.resp.Handle(w, r, product, err, http.StatusOK)
}

// batchStatus: 201 quando o lote criou algo, 200 quando tudo falhou por proposta.
func batchStatus(report *domain.BatchReport) int {
	if report != nil && len(report.Created) > 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}
