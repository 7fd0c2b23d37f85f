package importservice

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperror "gocatalog/internal/errors"
)

// preferredSheet é a aba lida quando existe; senão a primeira aba.
const preferredSheet = "Variants"

// Row é uma linha de dados da planilha, com o número da linha no arquivo
// (o cabeçalho é a linha 1).
type Row struct {
	Number int
	Fields map[string]string
}

// Get devolve o valor da coluna já sem espaços nas pontas.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// Sheet é o conteúdo tabular de um arquivo importado.
type Sheet struct {
	Columns []string
	Rows    []Row
}

// HasColumn informa se o cabeçalho tem a coluna.
func (s *Sheet) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ParseFile escolhe o leitor pela extensão do arquivo.
func ParseFile(filename string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, apperror.NewValidationError(fmt.Sprintf("formato de arquivo não suportado: %q (use .csv ou .xlsx)", filename))
	}
}

// ParseCSV lê um CSV com cabeçalho.
func ParseCSV(r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperror.NewValidationError("arquivo vazio")
	}
	if err != nil {
		return nil, apperror.NewValidationError(fmt.Sprintf("falha ao ler cabeçalho do CSV: %s", err.Error()))
	}
	sheet := &Sheet{Columns: normalizeHeader(header)}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperror.NewValidationError(fmt.Sprintf("CSV inválido: %s", err.Error()))
		}
		line, _ := reader.FieldPos(0)
		if row, ok := buildRow(sheet.Columns, record, line); ok {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet, nil
}

// ParseXLSX lê a aba "Variants" (ou a primeira aba) de uma planilha Excel.
func ParseXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperror.NewValidationError(fmt.Sprintf("falha ao abrir arquivo Excel: %s", err.Error()))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperror.NewValidationError("nenhuma aba encontrada no arquivo Excel")
	}
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, preferredSheet) {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, apperror.NewValidationError(fmt.Sprintf("falha ao ler a aba %s: %s", sheetName, err.Error()))
	}
	if len(excelRows) == 0 {
		return nil, apperror.NewValidationError("arquivo vazio")
	}

	sheet := &Sheet{Columns: normalizeHeader(excelRows[0])}
	for i, record := range excelRows[1:] {
		if row, ok := buildRow(sheet.Columns, record, i+2); ok {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet, nil
}

// normalizeHeader deixa os nomes em minúsculas, sem espaços nas pontas e sem o
// marcador " *" de obrigatório.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.TrimSpace(strings.ToLower(h))
		out[i] = strings.TrimSpace(strings.TrimSuffix(h, "*"))
	}
	return out
}

// buildRow monta a linha; linhas totalmente vazias são ignoradas.
func buildRow(columns, record []string, number int) (Row, bool) {
	row := Row{Number: number, Fields: make(map[string]string, len(columns))}
	empty := true
	for i, value := range record {
		if i >= len(columns) || columns[i] == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if value != "" {
			empty = false
		}
		row.Fields[columns[i]] = value
	}
	return row, !empty
}
