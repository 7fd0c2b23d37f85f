package product

import (
	"context"
	"net/http"

	"gocatalog/internal/api/respond"
	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/middleware"
)

// ProductService define o contrato que o Handler espera da camada de Serviço.
type ProductService interface {
	CreateProduct(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error)
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
}

// Handler agrupa todos os métodos de Handler do produto.
type Handler struct {
	Service ProductService
	resp    *respond.Responder
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Responder.
func NewHandler(svc ProductService, resp *respond.Responder) *Handler {
	return &Handler{Service: svc, resp: resp}
}

// CreateProductHandler lida com a requisição POST /v1/products.
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetUserClaimsFromContext(r.Context()); ok {
		h.resp.Logger.Info("Tentativa de criação de produto por", map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
		})
	}

	var req domain.CreateProductRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}
	product, err := h.Service.CreateProduct(r.Context(), req)
	h.resp.Handle(w, r, product, err, http.StatusCreated)
}

// GetProductByIDHandler lida com a requisição GET /v1/products/{id}.
func (h *Handler) GetProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.GetProductByID(r.Context(), r.PathValue("id"))
	h.resp.Handle(w, r, product, err, http.StatusOK)
}
