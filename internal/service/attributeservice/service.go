package attributeservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
)

// AttributeRepository é o contrato esperado do catálogo de atributos.
type AttributeRepository interface {
	Create(ctx context.Context, a domain.Attribute) (domain.Attribute, error)
	FindByID(ctx context.Context, id string) (domain.Attribute, error)
}

type Service struct {
	repo   AttributeRepository
	logger logger.Logger
}

func NewService(repo AttributeRepository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// CreateAttribute valida e cadastra um eixo de variação.
func (s *Service) CreateAttribute(ctx context.Context, req domain.CreateAttributeRequest) (domain.Attribute, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Attribute{}, apperror.NewValidationError("O nome do atributo é obrigatório.")
	}
	attrType := domain.AttributeType(strings.ToUpper(strings.TrimSpace(string(req.Type))))
	if !attrType.Valid() {
		return domain.Attribute{}, apperror.NewValidationError(fmt.Sprintf("Tipo de atributo inválido: %q.", req.Type))
	}

	values := make([]string, 0, len(req.Values))
	seen := make(map[string]bool, len(req.Values))
	for _, v := range req.Values {
		v = strings.TrimSpace(v)
		if v == "" {
			return domain.Attribute{}, apperror.NewValidationError("Valores do atributo não podem ser vazios.")
		}
		if seen[v] {
			return domain.Attribute{}, apperror.NewValidationError(fmt.Sprintf("Valor %q repetido no atributo.", v))
		}
		if attrType == domain.AttributeNumber {
			if _, err := decimal.NewFromString(v); err != nil {
				return domain.Attribute{}, apperror.NewValidationError(fmt.Sprintf("Valor %q não é numérico.", v))
			}
		}
		seen[v] = true
		values = append(values, v)
	}

	attr := domain.Attribute{
		ID:          uuid.New().String(),
		Name:        name,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Type:        attrType,
		Values:      values,
		CategoryID:  req.CategoryID,
	}
	created, err := s.repo.Create(ctx, attr)
	if err != nil {
		s.logger.Error("Falha ao criar atributo.", err)
		return domain.Attribute{}, err
	}
	return created, nil
}

func (s *Service) GetAttribute(ctx context.Context, id string) (domain.Attribute, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Attribute{}, apperror.NewValidationError("O ID do atributo deve ser um UUID válido.")
	}
	return s.repo.FindByID(ctx, id)
}
