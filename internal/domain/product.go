package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa o item principal do catálogo.
// MinPrice/MaxPrice e HasVariants são agregados mantidos pelo serviço de
// variantes e nunca editados diretamente.
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"` // único entre produtos ativos
	Description string           `json:"description,omitempty"`
	BasePrice   decimal.Decimal  `json:"base_price"`
	MinPrice    *decimal.Decimal `json:"min_price"`
	MaxPrice    *decimal.Decimal `json:"max_price"`
	HasVariants bool             `json:"has_variants"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Variant é uma versão concreta e comprável de um Produto, correspondente a
// uma combinação de atributos. O controle de estoque é feito a nível de Variant.
type Variant struct {
	ID            string                `json:"id"`
	ProductID     string                `json:"product_id"`
	SKU           string                `json:"sku"`
	Price         decimal.Decimal       `json:"price"`
	ComparePrice  *decimal.Decimal      `json:"compare_price,omitempty"`
	CostPrice     *decimal.Decimal      `json:"cost_price,omitempty"`
	Stock         int                   `json:"stock"`
	ReservedStock int                   `json:"reserved_stock"`
	Images        []string              `json:"images"`
	IsDefault     bool                  `json:"is_default"`
	IsActive      bool                  `json:"is_active"`
	DisplayOrder  int                   `json:"display_order"`
	Version       int                   `json:"version"` // Controle de Concorrência Otimista (OCC)
	Attributes    []AttributeAssignment `json:"attributes"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Combination devolve as atribuições da variante como combinação.
func (v Variant) Combination() Combination {
	c := make(Combination, 0, len(v.Attributes))
	for _, a := range v.Attributes {
		c = append(c, AttributeValue{AttributeID: a.AttributeID, Value: a.Value})
	}
	return c
}

// AttributeAssignment significa "esta variante tem o atributo X = valor Y".
// O par (VariantID, AttributeID) é único.
type AttributeAssignment struct {
	VariantID    string  `json:"variant_id"`
	AttributeID  string  `json:"attribute_id"`
	Value        string  `json:"value"`
	DisplayValue *string `json:"display_value,omitempty"`
}

// VariantPatch é a atualização parcial de uma variante (edição direta ou em massa).
// Campos nil não são alterados.
type VariantPatch struct {
	Price        *decimal.Decimal `json:"price,omitempty"`
	ComparePrice *decimal.Decimal `json:"compare_price,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	Stock        *int             `json:"stock,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
	IsDefault    *bool            `json:"is_default,omitempty"`
	DisplayOrder *int             `json:"display_order,omitempty"`
	Images       []string         `json:"images,omitempty"`
	Version      *int             `json:"version,omitempty"` // versão esperada (opcional)
}

// TouchesAggregate informa se o patch pode mover a faixa de preço do produto.
func (p VariantPatch) TouchesAggregate() bool {
	return p.Price != nil || p.IsActive != nil
}

// CreateProductRequest é o corpo de criação de produto.
type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
}
