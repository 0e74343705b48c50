package layout

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// SupportedInputExtensions lists the accepted input file extensions.
var SupportedInputExtensions = []string{".xlsx", ".xlsm", ".xls"}

var plainNumberRegex = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][-+]?\d+)?$`)

// LoadWorkbook abre o arquivo de entrada e resolve todas as planilhas em grades tipadas.
func LoadWorkbook(path string) (*domain.Workbook, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !isSupportedInput(ext) {
		return nil, domain.InputFileError(
			fmt.Sprintf("Formato de arquivo não suportado: '%s' (use %s)", ext, strings.Join(SupportedInputExtensions, ", ")), nil)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, domain.InputFileError(fmt.Sprintf("Não foi possível abrir o arquivo '%s'", path), err)
	}
	defer file.Close()

	return LoadWorkbookReader(file, ext)
}

// LoadWorkbookReader lê a planilha de r. Arquivos .xls são lidos com xlsReader e, se na
// verdade forem OOXML, com excelize.
func LoadWorkbookReader(r io.Reader, ext string) (*domain.Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.InputFileError("Erro ao ler o arquivo de entrada", err)
	}

	if strings.ToLower(ext) == ".xls" {
		wb, errXLS := loadXLS(bytes.NewReader(data))
		if errXLS == nil {
			return wb, nil
		}
		// talvez seja xlsx salvo com extensão .xls; tentar excelize
		wb, errX := loadXLSX(bytes.NewReader(data))
		if errX == nil {
			return wb, nil
		}
		return nil, domain.InputFileError("Arquivo .xls inválido ou corrompido", errXLS)
	}

	wb, err := loadXLSX(bytes.NewReader(data))
	if err != nil {
		return nil, domain.InputFileError("Arquivo Excel inválido ou corrompido", err)
	}
	return wb, nil
}

func isSupportedInput(ext string) bool {
	for _, e := range SupportedInputExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func loadXLSX(r io.Reader) (*domain.Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb := &domain.Workbook{}
	for _, name := range f.GetSheetList() {
		grid, err := xlsxGrid(f, name)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler planilha '%s': %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, domain.Sheet{Name: name, Grid: grid})
	}
	return wb, nil
}

// xlsxGrid resolve cada célula para Text/Number/Date usando o tipo e o formato numérico.
func xlsxGrid(f *excelize.File, sheet string) (*domain.Grid, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	dateStyles := map[int]bool{}

	grid := make([][]domain.Cell, len(rows))
	for r, row := range rows {
		cells := make([]domain.Cell, len(row))
		for c, raw := range row {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cells[c] = resolveXLSXCell(f, sheet, axis, raw, dateStyles)
		}
		grid[r] = cells
	}
	return domain.NewGrid(grid), nil
}

func resolveXLSXCell(f *excelize.File, sheet, axis, raw string, dateStyles map[int]bool) domain.Cell {
	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return domain.TextCell(raw)
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return domain.TextCell(raw)
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return domain.DateCell(dateOnly(t))
			}
		}
		return domain.TextCell(raw)
	}

	// numérico (tipo ausente, "n" ou fórmula com valor em cache)
	value := strings.TrimSpace(raw)
	if !plainNumberRegex.MatchString(value) {
		return domain.TextCell(raw)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return domain.TextCell(raw)
	}
	styleID, err := f.GetCellStyle(sheet, axis)
	if err == nil && isDateStyle(f, styleID, dateStyles) {
		serial, _ := d.Float64()
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return domain.DateCell(dateOnly(t))
		}
	}
	return domain.NumberCell(d)
}

// isDateStyle indica se o estilo aplica um formato de data, com cache por ID de estilo.
func isDateStyle(f *excelize.File, styleID int, cache map[int]bool) bool {
	if v, ok := cache[styleID]; ok {
		return v
	}
	isDate := false
	if style, err := f.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isBuiltInDateFormat(style.NumFmt)
		}
	}
	cache[styleID] = isDate
	return isDate
}

func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

var formatLiteralRegex = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// isDateFormatCode reconhece códigos como "dd/mm/yyyy" ou "d-mmm-yy"; horas puras não contam.
func isDateFormatCode(code string) bool {
	code = strings.ToLower(formatLiteralRegex.ReplaceAllString(code, ""))
	return strings.ContainsAny(code, "dy")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func loadXLS(r io.ReadSeeker) (*domain.Workbook, error) {
	workbook, err := xls.OpenReader(r)
	if err != nil {
		return nil, err
	}
	count := len(workbook.GetSheets())
	if count == 0 {
		return nil, fmt.Errorf("o arquivo .xls não contém planilhas")
	}

	wb := &domain.Workbook{}
	for i := 0; i < count; i++ {
		sheet, err := workbook.GetSheet(i)
		if err != nil {
			return nil, fmt.Errorf("erro ao obter planilha %d do arquivo .xls: %w", i, err)
		}
		var grid [][]domain.Cell
		for _, row := range sheet.GetRows() {
			var cells []domain.Cell
			for _, cell := range row.GetCols() {
				cells = append(cells, resolveXLSCell(cell.GetString()))
			}
			grid = append(grid, cells)
		}
		wb.Sheets = append(wb.Sheets, domain.Sheet{Name: sheet.GetName(), Grid: domain.NewGrid(grid)})
	}
	return wb, nil
}

// resolveXLSCell: o xlsReader entrega texto; números simples viram Number e o
// Processor decide se um número numa coluna de data é serial do Excel.
func resolveXLSCell(raw string) domain.Cell {
	value := strings.TrimSpace(raw)
	if value == "" {
		return domain.Cell{}
	}
	if plainNumberRegex.MatchString(value) {
		if d, err := decimal.NewFromString(value); err == nil {
			return domain.NumberCell(d)
		}
	}
	return domain.TextCell(raw)
}
