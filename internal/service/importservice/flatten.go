package importservice

import "strings"

// LogicalProduct agrupa as linhas que descrevem o mesmo produto.
type LogicalProduct struct {
	Key  string // nome sem espaços nas pontas e em minúsculas
	Name string // nome como apareceu na primeira linha
	Rows []Row
}

// GroupByProduct agrupa as linhas pelo nome do produto, na ordem da primeira
// aparição de cada nome. Linhas sem nome são devolvidas à parte.
func GroupByProduct(rows []Row) ([]LogicalProduct, []Row) {
	var groups []LogicalProduct
	var nameless []Row
	index := make(map[string]int)

	for _, row := range rows {
		name := row.Get(columnName)
		if name == "" {
			nameless = append(nameless, row)
			continue
		}
		key := strings.ToLower(name)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, LogicalProduct{Key: key, Name: name})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups, nameless
}

// chunk divide os grupos em lotes de até size propostas sem separar um
// produto, exceto quando ele sozinho passa de size.
func chunk(groups [][]int, size int) [][]int {
	var out [][]int
	var current []int
	for _, g := range groups {
		if len(current)+len(g) > size && len(current) > 0 {
			out = append(out, current)
			current = nil
		}
		for len(g) > size {
			out = append(out, g[:size])
			g = g[size:]
		}
		current = append(current, g...)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}
