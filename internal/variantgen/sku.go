package variantgen

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"gocatalog/internal/domain"
)

const (
	// MaxSKULength é o limite da coluna sku.
	MaxSKULength = 100
	// shortAttributeIDLength é o prefixo do id de atributo usado no SKU de importação.
	shortAttributeIDLength = 8
	// randomSuffixLength é o tamanho do sufixo aleatório do SKU de importação.
	randomSuffixLength = 6
)

var (
	illegalSKUChars = regexp.MustCompile(`[^A-Z0-9]+`)
	patternToken    = regexp.MustCompile(`\{([^{}]*)\}`)
)

// NormalizeSKU deixa o texto em maiúsculas, troca cada sequência de caracteres
// fora de [A-Z0-9] por um hífen e remove hífens das pontas. O resultado é
// limitado a MaxSKULength. Aplicar duas vezes não muda o resultado.
func NormalizeSKU(s string) string {
	s = strings.ToUpper(s)
	s = illegalSKUChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSKULength {
		s = strings.TrimRight(s[:MaxSKULength], "-")
	}
	return s
}

// FromPattern aplica um padrão de SKU a uma combinação.
//
// Tokens (sem diferenciar maiúsculas): {product} vira o nome do produto,
// {<atributo>} o nome de exibição do atributo e {<atributo>-value} o valor
// escolhido, onde <atributo> é o nome de exibição em minúsculas. Tokens
// desconhecidos são removidos. O texto final passa por NormalizeSKU.
func FromPattern(pattern string, c domain.Combination, productName string, attributes map[string]domain.Attribute) string {
	replacements := map[string]string{"product": NormalizeSKU(productName)}
	for _, av := range c {
		label := av.AttributeID
		if attr, ok := attributes[av.AttributeID]; ok {
			label = attr.Label()
		}
		key := strings.ToLower(strings.TrimSpace(label))
		if _, taken := replacements[key]; !taken {
			replacements[key] = NormalizeSKU(label)
		}
		if _, taken := replacements[key+"-value"]; !taken {
			replacements[key+"-value"] = NormalizeSKU(av.Value)
		}
	}

	substituted := patternToken.ReplaceAllStringFunc(pattern, func(tok string) string {
		key := strings.ToLower(strings.TrimSpace(tok[1 : len(tok)-1]))
		return replacements[key]
	})
	return NormalizeSKU(substituted)
}

// Sequential gera "<slug-do-produto>-<index+1>", usado quando não há padrão.
func Sequential(productName string, index int) string {
	base := slugOr(productName, "variant")
	suffix := "-" + strconv.Itoa(index+1)
	if len(base)+len(suffix) > MaxSKULength {
		base = strings.TrimRight(base[:MaxSKULength-len(suffix)], "-")
	}
	return base + suffix
}

// ImportSKU sintetiza o SKU de uma linha importada sem SKU.
//
// Formato: slug do produto, "idcurto-slug(valor)" por atributo, índice da
// linha, timestamp em base36 (segundos) e um sufixo aleatório. O corte para
// MaxSKULength é feito sempre pelo fim, preservando o prefixo legível.
func ImportSKU(productName string, attrs []domain.AttributeValue, rowIndex int, now time.Time, random string) string {
	parts := []string{slugOr(productName, "item")}
	for _, av := range attrs {
		id := av.AttributeID
		if len(id) > shortAttributeIDLength {
			id = id[:shortAttributeIDLength]
		}
		token := slug.Make(id)
		if v := slug.Make(av.Value); v != "" {
			token += "-" + v
		}
		if token != "" {
			parts = append(parts, token)
		}
	}
	parts = append(parts, strconv.Itoa(rowIndex), strconv.FormatInt(now.Unix(), 36))
	if random != "" {
		parts = append(parts, random)
	}

	sku := strings.Join(parts, "-")
	if len(sku) > MaxSKULength {
		sku = strings.TrimRight(sku[:MaxSKULength], "-")
	}
	return sku
}

// NewImportSKU é ImportSKU com relógio real e sufixo aleatório de um uuid v4.
func NewImportSKU(productName string, attrs []domain.AttributeValue, rowIndex int) string {
	return ImportSKU(productName, attrs, rowIndex, time.Now(), RandomSuffix())
}

// RandomSuffix devolve randomSuffixLength caracteres hexadecimais aleatórios.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomSuffixLength]
}

func slugOr(s, fallback string) string {
	if out := slug.Make(s); out != "" {
		return out
	}
	return fallback
}
