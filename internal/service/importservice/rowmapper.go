package importservice

// RowMapper liga a posição de cada proposta às linhas da planilha que a
// originaram. Uma posição pode vir de mais de uma linha.
type RowMapper struct {
	rows map[int][]int
}

// NewRowMapper cria um mapeador vazio.
func NewRowMapper() *RowMapper {
	return &RowMapper{rows: make(map[int][]int)}
}

// Record associa a linha à posição.
func (m *RowMapper) Record(position, row int) {
	m.rows[position] = append(m.rows[position], row)
}

// Resolve devolve uma cópia das linhas da posição, ou uma lista vazia (nunca
// nil) quando a posição não foi registrada.
func (m *RowMapper) Resolve(position int) []int {
	rows := m.rows[position]
	out := make([]int, len(rows))
	copy(out, rows)
	return out
}

// Len é o número de posições registradas.
func (m *RowMapper) Len() int {
	return len(m.rows)
}
