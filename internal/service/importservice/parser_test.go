package importservice_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperror "gocatalog/internal/errors"
	"gocatalog/internal/service/importservice"
)

func TestParseCSV_NormalizesHeaderAndTracksLines(t *testing.T) {
	data := "Name *, SKU ,price,attr:color,notes\n" +
		"Tee,T-1,10,red,\"linha um\nlinha dois\"\n" +
		"\n" +
		"Tee,T-2,12,blue,\n"

	sheet, err := importservice.ParseCSV(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, []string{"name", "sku", "price", "attr:color", "notes"}, sheet.Columns)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, "T-1", sheet.Rows[0].Get("sku"))
	assert.Equal(t, "red", sheet.Rows[0].Get("attr:color"))

	// O registro anterior ocupa duas linhas e há uma linha em branco.
	assert.Equal(t, 5, sheet.Rows[1].Number)
	assert.Equal(t, "T-2", sheet.Rows[1].Get("sku"))
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := importservice.ParseCSV(strings.NewReader(""))

	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestParseXLSX_PrefersVariantsSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Resumo"))
	_, err := f.NewSheet("Variants")
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow("Resumo", "A1", &[]interface{}{"ignorar"}))
	require.NoError(t, f.SetSheetRow("Variants", "A1", &[]interface{}{"name *", "sku", "price"}))
	require.NoError(t, f.SetSheetRow("Variants", "A2", &[]interface{}{"Mug", "M-1", "5"}))
	require.NoError(t, f.SetSheetRow("Variants", "A4", &[]interface{}{"Mug", "M-2", "6"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := importservice.ParseXLSX(bytes.NewReader(buf.Bytes()))

	require.NoError(t, err)
	assert.Equal(t, []string{"name", "sku", "price"}, sheet.Columns)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 2, sheet.Rows[0].Number)
	assert.Equal(t, 4, sheet.Rows[1].Number)
	assert.Equal(t, "M-2", sheet.Rows[1].Get("sku"))
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	_, err := importservice.ParseFile("produtos.txt", strings.NewReader("name\nx"))

	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestWriteTemplate_IsReadableAsImport(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, importservice.WriteTemplate(&buf, []string{"color", "size"}))

	sheet, err := importservice.ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, sheet.HasColumn("name"))
	assert.True(t, sheet.HasColumn("attr:color"))
	assert.True(t, sheet.HasColumn("attr:size"))
	assert.Empty(t, sheet.Rows)
}
