package attribute

import (
	"context"
	"net/http"

	"gocatalog/internal/api/respond"
	"gocatalog/internal/domain"
)

// AttributeService define o contrato que o Handler espera da camada de Serviço.
type AttributeService interface {
	CreateAttribute(ctx context.Context, req domain.CreateAttributeRequest) (domain.Attribute, error)
	GetAttribute(ctx context.Context, id string) (domain.Attribute, error)
}

type Handler struct {
	Service AttributeService
	resp    *respond.Responder
}

func NewHandler(svc AttributeService, resp *respond.Responder) *Handler {
	return &Handler{Service: svc, resp: resp}
}

// CreateHandler lida com POST /v1/attributes.
func (h *Handler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAttributeRequest
	if err := h.resp.Decode(w, r, &req); err != nil {
		h.resp.Handle(w, r, nil, err, http.StatusOK)
		return
	}
	attr, err := h.Service.CreateAttribute(r.Context(), req)
	h.resp.Handle(w, r, attr, err, http.StatusCreated)
}

// GetHandler lida com GET /v1/attributes/{id}.
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	attr, err := h.Service.GetAttribute(r.Context(), r.PathValue("id"))
	h.resp.Handle(w, r, attr, err, http.StatusOK)
}
