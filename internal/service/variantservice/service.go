package variantservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/variantgen"
)

// ProductReader define o acesso de leitura a produtos usado pelo serviço.
type ProductReader interface {
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

// VariantRepository define o contrato que o Serviço de Variantes espera da
// camada de Persistência.
type VariantRepository interface {
	VariantStore
	CountVariantsByProduct(ctx context.Context, productID string) (int, error)
	FindVariantByID(ctx context.Context, id string) (domain.Variant, error)
	UpdateVariant(ctx context.Context, id string, patch domain.VariantPatch) (domain.Variant, error)
	DeleteVariant(ctx context.Context, id string) (domain.Variant, error)
	AdjustStock(ctx context.Context, id string, delta int) (domain.Variant, error)
	ReorderVariants(ctx context.Context, productID string, orderedIDs []string) error
}

// Service concentra as operações de variantes: geração, criação em lote,
// edição, remoção, estoque e ordenação.
type Service struct {
	products        ProductReader
	variants        VariantRepository
	catalog         AttributeCatalog
	reconciler      *Reconciler
	aggregates      AggregateRefresher
	logger          logger.Logger
	maxCombinations int
}

// NewService cria e retorna uma nova instância do Serviço de Variantes.
func NewService(products ProductReader, variants VariantRepository, catalog AttributeCatalog, reconciler *Reconciler, aggregates AggregateRefresher, log logger.Logger, maxCombinations int) *Service {
	if maxCombinations <= 0 {
		maxCombinations = variantgen.DefaultMaxCombinations
	}
	return &Service{
		products:        products,
		variants:        variants,
		catalog:         catalog,
		reconciler:      reconciler,
		aggregates:      aggregates,
		logger:          log,
		maxCombinations: maxCombinations,
	}
}

// GenerateVariants gera uma variante por combinação dos grupos informados e
// submete todas ao reconciliador.
func (s *Service) GenerateVariants(ctx context.Context, req domain.GenerateRequest) (*domain.BatchReport, error) {
	s.logger.Debug("Iniciando geração de variantes.", map[string]interface{}{
		"product_id": req.ProductID,
		"groups":     len(req.Groups),
	})

	if req.Stock < 0 {
		return nil, apperror.NewValidationError("O estoque inicial não pode ser negativo.")
	}
	if req.BasePrice != nil && req.BasePrice.IsNegative() {
		return nil, apperror.NewValidationError("O preço base não pode ser negativo.")
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	combos, err := variantgen.Generate(req.Groups, s.maxCombinations)
	if err != nil {
		return nil, err
	}

	base := product.BasePrice
	if req.BasePrice != nil {
		base = *req.BasePrice
	}

	var attributes map[string]domain.Attribute
	if strings.TrimSpace(req.SKUPattern) != "" && len(req.Groups) > 0 {
		ids := make([]string, 0, len(req.Groups))
		for _, g := range req.Groups {
			ids = append(ids, g.AttributeID)
		}
		found, err := s.catalog.FindAttributesByIds(ctx, ids)
		if err != nil {
			return nil, err
		}
		attributes = make(map[string]domain.Attribute, len(found))
		for _, a := range found {
			attributes[a.ID] = a
		}
	}

	existing, err := s.variants.CountVariantsByProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	proposals := make([]domain.VariantProposal, 0, len(combos))
	for i, c := range combos {
		var sku string
		if strings.TrimSpace(req.SKUPattern) != "" {
			sku = variantgen.FromPattern(req.SKUPattern, c, product.Name, attributes)
		} else {
			sku = variantgen.Sequential(product.Name, existing+i)
		}

		price := variantgen.ResolvePrice(c, base, req.PriceTable, req.Adjustments)
		proposals = append(proposals, domain.VariantProposal{
			Position:     i + 1,
			ProductID:    product.ID,
			SKU:          sku,
			Price:        json.Number(price.String()),
			Stock:        json.Number(strconv.Itoa(req.Stock)),
			IsDefault:    i == 0 && existing == 0,
			IsActive:     req.IsActive,
			DisplayOrder: existing + i,
			Attributes:   c,
		})
	}

	return s.reconciler.Reconcile(ctx, proposals)
}

// BulkCreate submete uma lista de propostas explícitas ao reconciliador.
func (s *Service) BulkCreate(ctx context.Context, proposals []domain.VariantProposal) (*domain.BatchReport, error) {
	return s.reconciler.Reconcile(ctx, proposals)
}

// GetVariant busca uma variante com suas atribuições.
func (s *Service) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	return s.variants.FindVariantByID(ctx, id)
}

// UpdateVariant aplica uma atualização parcial com controle de concorrência
// otimista e recalcula os agregados quando preço ou status mudam.
func (s *Service) UpdateVariant(ctx context.Context, id string, patch domain.VariantPatch) (*domain.VariantMutation, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}

	updated, err := s.variants.UpdateVariant(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	result := &domain.VariantMutation{Variant: updated}
	if patch.TouchesAggregate() {
		if warning := s.refresh(ctx, updated.ProductID); warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	s.logger.Info("Variante atualizada.", map[string]interface{}{"variant_id": id, "version": updated.Version})
	return result, nil
}

// BulkUpdateFields aplica o mesmo patch a várias variantes. Cada id tem seu
// próprio resultado e os agregados são recalculados uma vez por produto.
func (s *Service) BulkUpdateFields(ctx context.Context, ids []string, patch domain.VariantPatch) (*domain.BulkUpdateReport, error) {
	if len(ids) == 0 {
		return nil, apperror.NewValidationError("Informe ao menos uma variante.")
	}
	if len(ids) > s.reconciler.MaxBatch() {
		return nil, apperror.NewLimitError(fmt.Sprintf("a atualização tem %d variantes, o máximo é %d", len(ids), s.reconciler.MaxBatch()))
	}
	if patch.IsDefault != nil && *patch.IsDefault && len(ids) > 1 {
		return nil, apperror.NewValidationError("Não é possível marcar várias variantes como padrão de uma vez.")
	}
	// A versão esperada só faz sentido para uma variante isolada.
	patch.Version = nil
	if err := checkPatch(patch); err != nil {
		return nil, err
	}

	report := &domain.BulkUpdateReport{Updated: []domain.Variant{}, Failed: []domain.BulkUpdateFailure{}}
	seen := make(map[string]bool, len(ids))
	var touched []string
	touchedSet := make(map[string]bool)

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		updated, err := s.variants.UpdateVariant(ctx, id, patch)
		if err != nil {
			report.Failed = append(report.Failed, domain.BulkUpdateFailure{VariantID: id, Reason: err.Error()})
			continue
		}
		report.Updated = append(report.Updated, updated)
		if !touchedSet[updated.ProductID] {
			touchedSet[updated.ProductID] = true
			touched = append(touched, updated.ProductID)
		}
	}

	if patch.TouchesAggregate() {
		for _, productID := range touched {
			if warning := s.refresh(ctx, productID); warning != "" {
				report.Warnings = append(report.Warnings, warning)
			}
		}
	}

	s.logger.Info("Atualização em massa concluída.", map[string]interface{}{
		"updated": len(report.Updated),
		"failed":  len(report.Failed),
	})
	return report, nil
}

// DeleteVariant remove a variante e suas atribuições e recalcula os agregados.
func (s *Service) DeleteVariant(ctx context.Context, id string) (*domain.VariantMutation, error) {
	deleted, err := s.variants.DeleteVariant(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &domain.VariantMutation{Variant: deleted}
	if warning := s.refresh(ctx, deleted.ProductID); warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	s.logger.Info("Variante removida.", map[string]interface{}{"variant_id": id, "product_id": deleted.ProductID})
	return result, nil
}

// AdjustStock aplica um ajuste relativo ao estoque da variante.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Variant, error) {
	s.logger.Debug("Iniciando ajuste de estoque no serviço.", map[string]interface{}{
		"variant_id": id,
		"delta":      delta,
	})

	if delta == 0 {
		return domain.Variant{}, apperror.NewValidationError("O ajuste de estoque (delta) não pode ser zero.")
	}

	v, err := s.variants.AdjustStock(ctx, id, delta)
	if err != nil {
		s.logger.Error("Falha ao ajustar estoque no repositório.", err)
		return domain.Variant{}, err
	}

	s.logger.Info("Estoque ajustado com sucesso.", map[string]interface{}{
		"variant_id":   v.ID,
		"new_quantity": v.Stock,
		"new_version":  v.Version,
	})
	return v, nil
}

// ReorderVariants define display_order pela posição de cada id na lista.
func (s *Service) ReorderVariants(ctx context.Context, productID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return apperror.NewValidationError("Informe a nova ordem das variantes.")
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if strings.TrimSpace(id) == "" {
			return apperror.NewValidationError("Id de variante vazio na ordenação.")
		}
		if seen[id] {
			return apperror.NewValidationError(fmt.Sprintf("Variante %s repetida na ordenação.", id))
		}
		seen[id] = true
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return err
	}
	return s.variants.ReorderVariants(ctx, productID, orderedIDs)
}

// RefreshAggregate força o recálculo dos agregados e devolve o produto atualizado.
func (s *Service) RefreshAggregate(ctx context.Context, productID string) (domain.Product, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return domain.Product{}, err
	}
	if err := s.aggregates.Refresh(ctx, productID); err != nil {
		return domain.Product{}, apperror.NewInternalError("Falha ao recalcular agregados do produto.", err)
	}
	return s.products.FindByID(ctx, productID)
}

// refresh recalcula os agregados e devolve um aviso em caso de falha. A
// alteração já foi gravada, então a falha não é propagada.
func (s *Service) refresh(ctx context.Context, productID string) string {
	if err := s.aggregates.Refresh(ctx, productID); err != nil {
		s.logger.Warn("Falha ao atualizar agregados do produto.", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
		return fmt.Sprintf("falha ao atualizar agregados do produto %s: %s", productID, err.Error())
	}
	return ""
}

func checkPatch(p domain.VariantPatch) error {
	if p.Price == nil && p.ComparePrice == nil && p.CostPrice == nil && p.Stock == nil &&
		p.IsActive == nil && p.IsDefault == nil && p.DisplayOrder == nil && p.Images == nil {
		return apperror.NewValidationError("Nenhum campo para atualizar.")
	}
	for field, d := range map[string]*decimal.Decimal{"price": p.Price, "compare_price": p.ComparePrice, "cost_price": p.CostPrice} {
		if d != nil && d.IsNegative() {
			return apperror.NewValidationError(fmt.Sprintf("%s não pode ser negativo.", field))
		}
	}
	if p.Stock != nil && *p.Stock < 0 {
		return apperror.NewValidationError("stock não pode ser negativo.")
	}
	if p.DisplayOrder != nil && *p.DisplayOrder < 0 {
		return apperror.NewValidationError("display_order não pode ser negativo.")
	}
	for _, img := range p.Images {
		if strings.TrimSpace(img) == "" {
			return apperror.NewValidationError("images não pode conter entradas vazias.")
		}
	}
	return nil
}
