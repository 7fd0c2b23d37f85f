package variantservice_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
)

// MockVariantStore é uma implementação mock da interface VariantStore.
// CreateVariantsAtomically devolve as próprias variantes recebidas quando não
// há erro configurado. FindExistingProductIDs considera todo produto
// cadastrado, exceto os listados em missingProducts.
type MockVariantStore struct {
	mock.Mock
	missingProducts map[string]bool
	productLookups  int
}

func (m *MockVariantStore) FindExistingProductIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	m.productLookups++
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !m.missingProducts[id] {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *MockVariantStore) FindExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error) {
	args := m.Called(ctx, skus)
	var out map[string]struct{}
	if v := args.Get(0); v != nil {
		out = v.(map[string]struct{})
	}
	return out, args.Error(1)
}

func (m *MockVariantStore) CreateVariantsAtomically(ctx context.Context, variants []domain.Variant) ([]domain.Variant, error) {
	args := m.Called(ctx, variants)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return variants, nil
}

func (m *MockVariantStore) FindActiveVariantsByProduct(ctx context.Context, productID string) ([]domain.Variant, error) {
	args := m.Called(ctx, productID)
	var out []domain.Variant
	if v := args.Get(0); v != nil {
		out = v.([]domain.Variant)
	}
	return out, args.Error(1)
}

// MockAttributeCatalog é uma implementação mock da interface AttributeCatalog.
type MockAttributeCatalog struct {
	mock.Mock
}

func (m *MockAttributeCatalog) FindAttributesByIds(ctx context.Context, ids []string) ([]domain.Attribute, error) {
	args := m.Called(ctx, ids)
	var out []domain.Attribute
	if v := args.Get(0); v != nil {
		out = v.([]domain.Attribute)
	}
	return out, args.Error(1)
}

// MockAggregateRefresher é uma implementação mock da interface AggregateRefresher.
type MockAggregateRefresher struct {
	mock.Mock
}

func (m *MockAggregateRefresher) Refresh(ctx context.Context, productID string) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// memStore guarda produtos, variantes e atributos em memória e implementa
// todos os contratos de persistência do pacote.
type memStore struct {
	mu           sync.Mutex
	products     map[string]domain.Product
	variants     map[string]domain.Variant
	order        []string
	attributes   map[string]domain.Attribute
	failCreate   error
	failAggWrite error
}

func newMemStore() *memStore {
	return &memStore{
		products:   map[string]domain.Product{},
		variants:   map[string]domain.Variant{},
		attributes: map[string]domain.Attribute{},
	}
}

func (s *memStore) addProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memStore) addAttribute(a domain.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[a.ID] = a
}

func (s *memStore) product(id string) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memStore) FindByID(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("Produto %s não encontrado.", id))
	}
	return p, nil
}

func (s *memStore) UpdateProductAggregate(_ context.Context, productID string, minPrice, maxPrice *decimal.Decimal, hasVariants bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAggWrite != nil {
		return s.failAggWrite
	}
	p := s.products[productID]
	p.MinPrice, p.MaxPrice, p.HasVariants = minPrice, maxPrice, hasVariants
	s.products[productID] = p
	return nil
}

func (s *memStore) FindAttributesByIds(_ context.Context, ids []string) ([]domain.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Attribute
	for _, id := range ids {
		if a, ok := s.attributes[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) FindExistingProductIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.products[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *memStore) FindExistingSKUs(_ context.Context, skus []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(skus))
	for _, sku := range skus {
		want[sku] = true
	}
	out := map[string]struct{}{}
	for _, v := range s.variants {
		if want[v.SKU] {
			out[v.SKU] = struct{}{}
		}
	}
	return out, nil
}

func (s *memStore) CreateVariantsAtomically(_ context.Context, variants []domain.Variant) ([]domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return nil, s.failCreate
	}
	for _, nv := range variants {
		for _, v := range s.variants {
			if v.SKU == nv.SKU {
				return nil, apperror.NewConflictError(fmt.Sprintf("SKU %s já existe", nv.SKU))
			}
		}
	}
	for _, nv := range variants {
		if nv.IsDefault {
			for id, v := range s.variants {
				if v.ProductID == nv.ProductID && v.IsDefault {
					v.IsDefault = false
					s.variants[id] = v
				}
			}
		}
		s.variants[nv.ID] = nv
		s.order = append(s.order, nv.ID)
	}
	return append([]domain.Variant(nil), variants...), nil
}

func (s *memStore) FindActiveVariantsByProduct(_ context.Context, productID string) ([]domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Variant
	for _, id := range s.order {
		v, ok := s.variants[id]
		if ok && v.ProductID == productID && v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) CountVariantsByProduct(_ context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.variants {
		if v.ProductID == productID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindVariantByID(_ context.Context, id string) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, apperror.NewNotFoundError(fmt.Sprintf("Variante %s não encontrada.", id))
	}
	return v, nil
}

func (s *memStore) UpdateVariant(_ context.Context, id string, patch domain.VariantPatch) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, apperror.NewNotFoundError(fmt.Sprintf("Variante %s não encontrada.", id))
	}
	if patch.Version != nil && *patch.Version != v.Version {
		return domain.Variant{}, apperror.NewConflictError("A variante foi modificada por outra operação. Tente novamente.")
	}
	if patch.Price != nil {
		v.Price = *patch.Price
	}
	if patch.ComparePrice != nil {
		v.ComparePrice = patch.ComparePrice
	}
	if patch.CostPrice != nil {
		v.CostPrice = patch.CostPrice
	}
	if patch.Stock != nil {
		v.Stock = *patch.Stock
	}
	if patch.IsActive != nil {
		v.IsActive = *patch.IsActive
	}
	if patch.DisplayOrder != nil {
		v.DisplayOrder = *patch.DisplayOrder
	}
	if patch.Images != nil {
		v.Images = patch.Images
	}
	if patch.IsDefault != nil {
		if *patch.IsDefault {
			for oid, o := range s.variants {
				if o.ProductID == v.ProductID && o.IsDefault {
					o.IsDefault = false
					s.variants[oid] = o
				}
			}
		}
		v.IsDefault = *patch.IsDefault
	}
	v.Version++
	s.variants[id] = v
	return v, nil
}

func (s *memStore) DeleteVariant(_ context.Context, id string) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, apperror.NewNotFoundError(fmt.Sprintf("Variante %s não encontrada.", id))
	}
	delete(s.variants, id)
	return v, nil
}

func (s *memStore) AdjustStock(_ context.Context, id string, delta int) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, apperror.NewNotFoundError(fmt.Sprintf("Variante %s não encontrada.", id))
	}
	if v.Stock+delta < v.ReservedStock {
		return domain.Variant{}, apperror.NewValidationError("Ajuste resultaria em estoque abaixo do reservado.")
	}
	v.Stock += delta
	v.Version++
	s.variants[id] = v
	return v, nil
}

func (s *memStore) ReorderVariants(_ context.Context, productID string, orderedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range orderedIDs {
		v, ok := s.variants[id]
		if !ok || v.ProductID != productID {
			return apperror.NewValidationError(fmt.Sprintf("Variante %s não pertence ao produto %s.", id, productID))
		}
	}
	for i, id := range orderedIDs {
		v := s.variants[id]
		v.DisplayOrder = i
		s.variants[id] = v
	}
	return nil
}
