package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AttributeType é o tipo de um eixo de variação.
type AttributeType string

const (
	AttributeColor  AttributeType = "COLOR"
	AttributeSelect AttributeType = "SELECT"
	AttributeImage  AttributeType = "IMAGE"
	AttributeText   AttributeType = "TEXT"
	AttributeNumber AttributeType = "NUMBER"
)

// Valid informa se o tipo é um dos tipos conhecidos.
func (t AttributeType) Valid() bool {
	switch t {
	case AttributeColor, AttributeSelect, AttributeImage, AttributeText, AttributeNumber:
		return true
	}
	return false
}

// Attribute é um eixo nomeado e tipado de variação (e.g., Cor) com um
// conjunto finito de valores legais. Imutável durante um lote.
type Attribute struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Type        AttributeType `json:"type"`
	Values      []string      `json:"values"`
	CategoryID  *string       `json:"category_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Label devolve o nome de exibição, caindo para o nome interno.
func (a Attribute) Label() string {
	if strings.TrimSpace(a.DisplayName) != "" {
		return a.DisplayName
	}
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.ID
}

// HasValue informa se o valor pertence à lista de valores legais.
func (a Attribute) HasValue(value string) bool {
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

// CheckValue valida um valor contra o tipo e os valores declarados do atributo.
// Retorna "" quando o valor é aceito.
func (a Attribute) CheckValue(value string) string {
	switch a.Type {
	case AttributeNumber:
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Sprintf("valor %q do atributo %s não é numérico", value, a.Label())
		}
	case AttributeColor, AttributeSelect, AttributeImage:
		if len(a.Values) > 0 && !a.HasValue(value) {
			return fmt.Sprintf("valor %q não é permitido para o atributo %s", value, a.Label())
		}
	}
	return ""
}

// AttributeValue é um par (atributo, valor) de uma combinação.
type AttributeValue struct {
	AttributeID string `json:"attribute_id" validate:"required"`
	Value       string `json:"value" validate:"required"`
}

// AttributeGroup é um atributo com seus valores candidatos, entrada do gerador.
type AttributeGroup struct {
	AttributeID string   `json:"attribute_id"`
	Values      []string `json:"values"`
}

// Combination é uma atribuição de exatamente um valor para cada atributo do
// grupo gerador. A ordem segue a ordem dos grupos.
type Combination []AttributeValue

// Signature é a forma canônica (independente de ordem) da combinação.
func (c Combination) Signature() string {
	parts := make([]string, 0, len(c))
	for _, av := range c {
		parts = append(parts, fmt.Sprintf("%d:%s=%d:%s", len(av.AttributeID), av.AttributeID, len(av.Value), av.Value))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Equal compara duas combinações como conjuntos.
func (c Combination) Equal(other Combination) bool {
	return len(c) == len(other) && c.Signature() == other.Signature()
}

// PriceEntry é uma linha da tabela explícita de preços.
type PriceEntry struct {
	Combination Combination     `json:"combination"`
	Price       decimal.Decimal `json:"price"`
}

// AdjustmentRules mapeia atributo -> valor -> ajuste somado ao preço base.
// Ajustes negativos representam descontos.
type AdjustmentRules map[string]map[string]decimal.Decimal

// CreateAttributeRequest é o corpo de cadastro de atributo.
type CreateAttributeRequest struct {
	Name        string        `json:"name" validate:"required,max=100"`
	DisplayName string        `json:"display_name" validate:"max=100"`
	Type        AttributeType `json:"type" validate:"required"`
	Values      []string      `json:"values" validate:"dive,required"`
	CategoryID  *string       `json:"category_id,omitempty"`
}
