package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// VariantProposal é uma variante proposta ao reconciliador.
// Os campos numéricos chegam crus (json.Number) porque a coerção faz parte da
// validação por linha e não deve derrubar o lote inteiro.
type VariantProposal struct {
	// Position identifica a proposta no relatório. Zero significa "índice+1".
	Position     int              `json:"position,omitempty"`
	ProductID    string           `json:"product_id" validate:"required"`
	SKU          string           `json:"sku" validate:"required,max=100"`
	Price        json.Number      `json:"price" validate:"required"`
	ComparePrice json.Number      `json:"compare_price,omitempty"`
	CostPrice    json.Number      `json:"cost_price,omitempty"`
	Stock        json.Number      `json:"stock" validate:"required"`
	Images       []string         `json:"images,omitempty" validate:"dive,required"`
	IsDefault    bool             `json:"is_default"`
	IsActive     *bool            `json:"is_active,omitempty"`
	DisplayOrder int              `json:"display_order"`
	Attributes   []AttributeValue `json:"attributes" validate:"dive"`
}

// Active informa se a proposta cria uma variante ativa (padrão: sim).
func (p VariantProposal) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// FailedProposal é uma falha por proposta, sempre referenciada pela posição original.
type FailedProposal struct {
	Position  int    `json:"position"`
	SKU       string `json:"sku"`
	ProductID string `json:"product_id,omitempty"`
	Reason    string `json:"reason"`
}

// BatchReport é o resultado {created, failed} de um lote.
type BatchReport struct {
	Created  []Variant        `json:"created"`
	Failed   []FailedProposal `json:"failed"`
	Warnings []string         `json:"warnings,omitempty"`
}

// NewBatchReport cria um relatório vazio (listas não nulas no JSON).
func NewBatchReport() *BatchReport {
	return &BatchReport{Created: []Variant{}, Failed: []FailedProposal{}}
}

// GenerateRequest é a entrada (a) da criação em lote: um produto e grupos de
// atributos a combinar.
type GenerateRequest struct {
	ProductID   string           `json:"-"`
	Groups      []AttributeGroup `json:"groups"`
	BasePrice   *decimal.Decimal `json:"base_price,omitempty"`
	PriceTable  []PriceEntry     `json:"price_table,omitempty"`
	Adjustments AdjustmentRules  `json:"adjustments,omitempty"`
	SKUPattern  string           `json:"sku_pattern,omitempty"`
	Stock       int              `json:"stock"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// BulkUpdateFailure é a falha de uma variante numa atualização em massa.
type BulkUpdateFailure struct {
	VariantID string `json:"variant_id"`
	Reason    string `json:"reason"`
}

// BulkUpdateReport é o resultado de uma atualização em massa de campos.
type BulkUpdateReport struct {
	Updated  []Variant           `json:"updated"`
	Failed   []BulkUpdateFailure `json:"failed"`
	Warnings []string            `json:"warnings,omitempty"`
}

// VariantMutation é o resultado de uma alteração isolada de variante.
// Warnings carrega falhas de atualização de agregados, que não desfazem a
// alteração já gravada.
type VariantMutation struct {
	Variant  Variant  `json:"variant"`
	Warnings []string `json:"warnings,omitempty"`
}

// BulkUpdateRequest aplica o mesmo patch a várias variantes.
type BulkUpdateRequest struct {
	VariantIDs []string     `json:"variant_ids" validate:"required,min=1,dive,required"`
	Patch      VariantPatch `json:"patch"`
}

// ReorderRequest define a nova ordem de exibição das variantes de um produto.
type ReorderRequest struct {
	VariantIDs []string `json:"variant_ids" validate:"required,min=1,dive,required"`
}

// StockAdjustmentRequest é o ajuste relativo de estoque de uma variante.
type StockAdjustmentRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// BulkCreateRequest é a entrada (b) da criação em lote: propostas explícitas.
// As propostas não são validadas aqui; cada uma recebe seu próprio resultado.
type BulkCreateRequest struct {
	Proposals []VariantProposal `json:"proposals" validate:"required,min=1"`
}
