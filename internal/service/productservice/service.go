package productservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
)

// ProductRepository define o contrato (interface) que este Serviço espera
// da camada de Persistência (DB, Cache).
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindActiveByName(ctx context.Context, name string) (domain.Product, error)
}

// Service implementa o cadastro de produtos. Faixa de preço e hasVariants
// ficam a cargo do serviço de variantes.
type Service struct {
	repo   ProductRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Produto.
func NewService(repo ProductRepository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// CreateProduct valida e cria um produto ativo, ainda sem variantes.
func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, apperror.NewValidationError("O nome do produto é obrigatório.")
	}
	if req.BasePrice.IsNegative() {
		return domain.Product{}, apperror.NewValidationError("O preço base do produto não pode ser negativo.")
	}

	// Nome único entre ativos: checagem amigável antes do índice único do banco.
	if _, err := s.repo.FindActiveByName(ctx, name); err == nil {
		return domain.Product{}, apperror.NewConflictError(fmt.Sprintf("Já existe um produto ativo chamado %q.", name))
	} else if !apperror.IsNotFound(err) {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		BasePrice:   req.BasePrice,
		IsActive:    true,
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		s.logger.Error("Falha ao criar produto.", err)
		return domain.Product{}, err
	}
	return created, nil
}

// GetProductByID busca um produto. Ids que não são UUID são rejeitados antes do repositório.
func (s *Service) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, apperror.NewValidationError("O ID do produto deve ser um UUID válido.")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto com ID %s não foi encontrado.", id))
		}
		return domain.Product{}, err
	}
	return product, nil
}
