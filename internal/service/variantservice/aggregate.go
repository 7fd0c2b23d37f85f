package variantservice

import (
	"context"

	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/logger"
)

// AggregateStore é a leitura de variantes necessária para recalcular agregados.
type AggregateStore interface {
	FindActiveVariantsByProduct(ctx context.Context, productID string) ([]domain.Variant, error)
	CountVariantsByProduct(ctx context.Context, productID string) (int, error)
}

// ProductAggregateWriter grava os agregados calculados no produto.
type ProductAggregateWriter interface {
	UpdateProductAggregate(ctx context.Context, productID string, minPrice, maxPrice *decimal.Decimal, hasVariants bool) error
}

// AggregateMaintainer mantém min/max de preço e hasVariants de um produto
// coerentes com suas variantes.
type AggregateMaintainer struct {
	variants AggregateStore
	products ProductAggregateWriter
	logger   logger.Logger
}

// NewAggregateMaintainer cria o mantenedor de agregados.
func NewAggregateMaintainer(variants AggregateStore, products ProductAggregateWriter, log logger.Logger) *AggregateMaintainer {
	return &AggregateMaintainer{variants: variants, products: products, logger: log}
}

// Refresh recalcula os agregados do produto a partir do estado persistido.
// Sem variantes ativas, min e max ficam nulos. hasVariants considera todas as
// variantes, ativas ou não.
func (m *AggregateMaintainer) Refresh(ctx context.Context, productID string) error {
	active, err := m.variants.FindActiveVariantsByProduct(ctx, productID)
	if err != nil {
		return err
	}
	total, err := m.variants.CountVariantsByProduct(ctx, productID)
	if err != nil {
		return err
	}

	minPrice, maxPrice := PriceRange(active)
	if err := m.products.UpdateProductAggregate(ctx, productID, minPrice, maxPrice, total > 0); err != nil {
		return err
	}

	m.logger.Debug("Agregados do produto atualizados.", map[string]interface{}{
		"product_id":   productID,
		"active":       len(active),
		"has_variants": total > 0,
	})
	return nil
}

// PriceRange devolve o menor e o maior preço entre as variantes ativas, ou
// nil/nil quando não há nenhuma.
func PriceRange(variants []domain.Variant) (*decimal.Decimal, *decimal.Decimal) {
	var minPrice, maxPrice *decimal.Decimal
	for _, v := range variants {
		if !v.IsActive {
			continue
		}
		price := v.Price
		if minPrice == nil || price.LessThan(*minPrice) {
			p := price
			minPrice = &p
		}
		if maxPrice == nil || price.GreaterThan(*maxPrice) {
			p := price
			maxPrice = &p
		}
	}
	return minPrice, maxPrice
}
