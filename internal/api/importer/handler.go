package importer

import (
	"context"
	"io"
	"net/http"
	"strings"

	"gocatalog/internal/api/respond"
	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/middleware"
	"gocatalog/internal/service/importservice"
)

// maxUploadBytes limita o arquivo enviado (10MB).
const maxUploadBytes = 10 << 20

// ImportService define o contrato que o Handler espera da camada de Serviço.
type ImportService interface {
	Import(ctx context.Context, filename string, r io.Reader) (*importservice.ImportReport, error)
}

type Handler struct {
	Service ImportService
	resp    *respond.Responder
}

func NewHandler(svc ImportService, resp *respond.Responder) *Handler {
	return &Handler{Service: svc, resp: resp}
}

// partialResponse acompanha um erro de infraestrutura que interrompeu a
// importação no meio: o que já foi gravado continua no relatório.
type partialResponse struct {
	domain.ErrorResponse
	Report *importservice.ImportReport `json:"report"`
}

// ImportHandler lida com POST /v1/imports/variants (multipart, campo "file").
func (h *Handler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.resp.Handle(w, r, nil, apperror.NewValidationError("Envie a planilha no campo multipart \"file\"."), http.StatusOK)
		return
	}
	defer file.Close()

	fields := map[string]interface{}{"filename": header.Filename, "size": header.Size}
	if claims, ok := middleware.GetUserClaimsFromContext(r.Context()); ok {
		fields["user_id"] = claims.UserID
	}
	h.resp.Logger.Info("Importação de planilha recebida.", fields)

	report, err := h.Service.Import(r.Context(), header.Filename, file)
	if err != nil && report != nil {
		status, category, message := apperror.MapToHTTPStatus(err)
		h.resp.Logger.Error("Importação interrompida com relatório parcial.", err)
		h.resp.JSON(w, status, partialResponse{
			ErrorResponse: domain.ErrorResponse{Code: status, Category: category, Message: message},
			Report:        report,
		})
		return
	}
	h.resp.Handle(w, r, report, err, http.StatusOK)
}

// TemplateHandler lida com GET /v1/imports/template?attr=<id>&attr=<id>.
// Também aceita ids separados por vírgula.
func (h *Handler) TemplateHandler(w http.ResponseWriter, r *http.Request) {
	var attrs []string
	for _, raw := range r.URL.Query()["attr"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				attrs = append(attrs, id)
			}
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="variants_template.xlsx"`)
	if err := importservice.WriteTemplate(w, attrs); err != nil {
		h.resp.Logger.Error("Falha ao gerar template de importação.", err)
		http.Error(w, "Erro ao gerar template", http.StatusInternalServerError)
	}
}
