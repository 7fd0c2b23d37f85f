package importservice

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type templateColumn struct {
	Name        string
	Description string
	Required    bool
	Example     string
}

var templateColumns = []templateColumn{
	{columnName, "Nome do produto. Linhas com o mesmo nome formam um único produto.", true, "Camiseta Básica"},
	{columnSKU, "SKU da variante. Vazio gera um SKU automaticamente.", false, "CAM-BAS-AZ-M"},
	{columnPrice, "Preço de venda. Vazio usa o preço base do produto.", false, "49.90"},
	{columnComparePrice, "Preço \"de\" para exibir desconto.", false, "59.90"},
	{columnCostPrice, "Custo unitário.", false, "21.00"},
	{columnStock, "Estoque inicial (inteiro, padrão 0).", false, "10"},
	{columnIsDefault, "Marca a variante padrão do produto (true/false).", false, "true"},
	{columnIsActive, "Variante ativa (true/false, padrão true).", false, "true"},
	{columnImages, "URLs de imagens separadas por |.", false, "https://cdn.exemplo.com/a.jpg|https://cdn.exemplo.com/b.jpg"},
}

// WriteTemplate escreve uma planilha modelo com uma coluna attr:<id> para
// cada atributo informado e uma aba de instruções.
func WriteTemplate(w io.Writer, attributeIDs []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", preferredSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	requiredStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	columns := append([]templateColumn(nil), templateColumns...)
	for _, id := range attributeIDs {
		columns = append(columns, templateColumn{
			Name:        attributePrefix + id,
			Description: fmt.Sprintf("Valor do atributo %s.", id),
		})
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		header, style := col.Name, headerStyle
		if col.Required {
			header, style = col.Name+" *", requiredStyle
		}
		if err := f.SetCellValue(preferredSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(preferredSheet, cell, cell, style); err != nil {
			return err
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(preferredSheet, colName, colName, 20); err != nil {
			return err
		}
	}

	const instructions = "Instrucoes"
	if _, err := f.NewSheet(instructions); err != nil {
		return err
	}
	_ = f.SetCellValue(instructions, "A1", "Coluna")
	_ = f.SetCellValue(instructions, "B1", "Descrição")
	_ = f.SetCellValue(instructions, "C1", "Obrigatória")
	_ = f.SetCellValue(instructions, "D1", "Exemplo")
	for i, col := range columns {
		row := i + 2
		required := "não"
		if col.Required {
			required = "sim"
		}
		_ = f.SetCellValue(instructions, fmt.Sprintf("A%d", row), col.Name)
		_ = f.SetCellValue(instructions, fmt.Sprintf("B%d", row), col.Description)
		_ = f.SetCellValue(instructions, fmt.Sprintf("C%d", row), required)
		_ = f.SetCellValue(instructions, fmt.Sprintf("D%d", row), col.Example)
	}
	_ = f.SetColWidth(instructions, "A", "A", 20)
	_ = f.SetColWidth(instructions, "B", "B", 70)
	_ = f.SetColWidth(instructions, "D", "D", 40)

	idx, err := f.GetSheetIndex(preferredSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	_, err = f.WriteTo(w)
	return err
}
