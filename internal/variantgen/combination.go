// Package variantgen contém as funções puras do motor de variantes:
// geração de combinações, resolução de preço e síntese de SKU.
// Nenhuma função aqui acessa estado compartilhado.
package variantgen

import (
	"fmt"
	"strings"

	"gocatalog/internal/domain"
	apperror "gocatalog/internal/errors"
)

// DefaultMaxCombinations é o teto usado quando nenhum limite positivo é informado.
const DefaultMaxCombinations = 100

// Generate produz o produto cartesiano dos grupos de atributos.
//
// O primeiro grupo varia mais devagar e o último mais rápido, como laços
// aninhados com o primeiro grupo por fora. Sem grupos, devolve uma única
// combinação vazia. A contagem total é verificada contra limit antes de
// qualquer alocação; acima do teto retorna LimitError.
func Generate(groups []domain.AttributeGroup, limit int) ([]domain.Combination, error) {
	if limit <= 0 {
		limit = DefaultMaxCombinations
	}
	if err := validateGroups(groups); err != nil {
		return nil, err
	}

	total := 1
	for _, g := range groups {
		total *= len(g.Values)
		if total > limit {
			return nil, apperror.NewLimitError(fmt.Sprintf(
				"os grupos de atributos geram mais de %d combinações (teto configurado)", limit))
		}
	}

	return expand(groups), nil
}

// Count devolve o número de combinações sem gerá-las.
func Count(groups []domain.AttributeGroup) int {
	total := 1
	for _, g := range groups {
		total *= len(g.Values)
	}
	return total
}

func expand(groups []domain.AttributeGroup) []domain.Combination {
	if len(groups) == 0 {
		return []domain.Combination{{}}
	}

	head := groups[0]
	rest := expand(groups[1:])

	out := make([]domain.Combination, 0, len(head.Values)*len(rest))
	for _, value := range head.Values {
		for _, tail := range rest {
			combo := make(domain.Combination, 0, len(tail)+1)
			combo = append(combo, domain.AttributeValue{AttributeID: head.AttributeID, Value: value})
			combo = append(combo, tail...)
			out = append(out, combo)
		}
	}
	return out
}

// validateGroups rejeita entradas que indicam erro do chamador.
func validateGroups(groups []domain.AttributeGroup) error {
	seenAttr := make(map[string]bool, len(groups))
	for i, g := range groups {
		if strings.TrimSpace(g.AttributeID) == "" {
			return apperror.NewValidationError(fmt.Sprintf("grupo %d sem attribute_id", i+1))
		}
		if seenAttr[g.AttributeID] {
			return apperror.NewValidationError(fmt.Sprintf("atributo %s aparece em mais de um grupo", g.AttributeID))
		}
		seenAttr[g.AttributeID] = true

		if len(g.Values) == 0 {
			return apperror.NewValidationError(fmt.Sprintf("atributo %s sem valores candidatos", g.AttributeID))
		}
		seenValue := make(map[string]bool, len(g.Values))
		for _, v := range g.Values {
			if strings.TrimSpace(v) == "" {
				return apperror.NewValidationError(fmt.Sprintf("atributo %s tem valor vazio", g.AttributeID))
			}
			if seenValue[v] {
				return apperror.NewValidationError(fmt.Sprintf("valor %q repetido no atributo %s", v, g.AttributeID))
			}
			seenValue[v] = true
		}
	}
	return nil
}
