package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

func writeLayoutFixture(t *testing.T, name string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Capa"))
	_, err := f.NewSheet("Layout")
	require.NoError(t, err)

	values := map[string]any{
		"A1": "Documento", "B1": "AZ",
		"A2": "Plano Financeiro", "B2": "1.01.02.01",
		"A3": "Contrato", "B3": "Valor", "C3": "Data Crédito",
		"A4": "C-1", "B4": 1234.56, "C4": time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		"A5": "C-2", "B5": "628,91", "C5": 45804.0,
	}
	for axis, v := range values {
		require.NoError(t, f.SetCellValue("Layout", axis, v))
	}
	custom := "dd/mm/yyyy"
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Layout", "C5", "C5", style))

	path := filepath.Join(t.TempDir(), name)
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, f.Write(out))
	return path
}

func TestLoadWorkbook_ResolvesCellKinds(t *testing.T) {
	wb, err := LoadWorkbook(writeLayoutFixture(t, "entrada.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Capa", "Layout"}, wb.SheetNames())

	g, ok := wb.Sheet("Layout")
	require.True(t, ok)

	assert.Equal(t, domain.CellText, g.At(0, 0).Kind)
	assert.Equal(t, "1.01.02.01", g.At(1, 1).String())

	valor := g.At(3, 1)
	require.Equal(t, domain.CellNumber, valor.Kind)
	assert.Equal(t, "1234.56", valor.Number.String())

	data := g.At(3, 2)
	require.Equal(t, domain.CellDate, data.Kind)
	assert.Equal(t, "05/05/2025", data.String())

	assert.Equal(t, domain.CellText, g.At(4, 1).Kind)

	serial := g.At(4, 2)
	require.Equal(t, domain.CellDate, serial.Kind)
	assert.Equal(t, "27/05/2025", serial.String())

	assert.True(t, g.At(99, 99).IsEmpty())
}

func TestLoadWorkbook_XLSExtensionWithOOXMLContent(t *testing.T) {
	wb, err := LoadWorkbook(writeLayoutFixture(t, "entrada.xls"))
	require.NoError(t, err)
	_, ok := wb.Sheet("Layout")
	assert.True(t, ok)
}

func TestLoadWorkbook_Errors(t *testing.T) {
	_, err := LoadWorkbook(filepath.Join(t.TempDir(), "dados.csv"))
	assert.Equal(t, domain.CodeInputFile, domain.CodeOf(err))

	_, err = LoadWorkbook(filepath.Join(t.TempDir(), "ausente.xlsx"))
	assert.Equal(t, domain.CodeInputFile, domain.CodeOf(err))

	bad := filepath.Join(t.TempDir(), "corrompido.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("not a workbook"), 0o644))
	_, err = LoadWorkbook(bad)
	assert.Equal(t, domain.CodeInputFile, domain.CodeOf(err))
}

func TestIsDateFormatCode(t *testing.T) {
	assert.True(t, isDateFormatCode("dd/mm/yyyy"))
	assert.True(t, isDateFormatCode("[$-416]d-mmm-yy"))
	assert.False(t, isDateFormatCode("hh:mm"))
	assert.False(t, isDateFormatCode(`#,##0.00 "dias"`))
}

func TestResolveXLSCell(t *testing.T) {
	assert.Equal(t, domain.CellNumber, resolveXLSCell("45782").Kind)
	assert.Equal(t, domain.CellNumber, resolveXLSCell("-10.5").Kind)
	assert.Equal(t, domain.CellText, resolveXLSCell("1.234,56").Kind)
	assert.Equal(t, domain.CellEmpty, resolveXLSCell("  ").Kind)
}
