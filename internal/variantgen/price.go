package variantgen

import (
	"github.com/shopspring/decimal"

	"gocatalog/internal/domain"
)

// ResolvePrice calcula o preço de uma combinação.
//
// Prioridades: a primeira entrada da tabela explícita cuja combinação é igual
// (como conjunto); senão o preço base somado aos ajustes por atributo/valor;
// sem tabela nem regras, o próprio preço base. O resultado nunca é negativo.
func ResolvePrice(c domain.Combination, base decimal.Decimal, table []domain.PriceEntry, rules domain.AdjustmentRules) decimal.Decimal {
	for _, entry := range table {
		if entry.Combination.Equal(c) {
			return floorZero(entry.Price)
		}
	}

	price := base
	for _, av := range c {
		byValue, ok := rules[av.AttributeID]
		if !ok {
			continue
		}
		if adj, ok := byValue[av.Value]; ok {
			price = price.Add(adj)
		}
	}
	return floorZero(price)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
