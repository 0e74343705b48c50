package generator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/core/processor"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

type columnKind int

const (
	kindText columnKind = iota
	kindValue
	kindDate
)

// column é uma coluna de saída resolvida a partir do nome configurado.
type column struct {
	header     string
	kind       columnKind
	dateLayout string
	text       func(domain.OutputRow) string
	value      func(domain.OutputRow) decimal.Decimal
	date       func(domain.OutputRow) time.Time
}

func resolveColumns(names []string, dateLayout string) ([]column, error) {
	cols := make([]column, 0, len(names))
	for _, name := range names {
		var c column
		switch domain.FoldText(name) {
		case domain.FoldText(config.ColContrato):
			c = column{kind: kindText, text: func(r domain.OutputRow) string { return r.Contrato }}
		case domain.FoldText(config.ColValor):
			c = column{kind: kindValue, value: func(r domain.OutputRow) decimal.Decimal { return r.Valor }}
		case domain.FoldText(config.ColEmissao):
			c = column{kind: kindDate, date: func(r domain.OutputRow) time.Time { return r.Emissao }}
		case domain.FoldText(config.ColVencimento):
			c = column{kind: kindDate, date: func(r domain.OutputRow) time.Time { return r.Vencimento }}
		case domain.FoldText(config.ColCompetencia):
			c = column{kind: kindDate, date: func(r domain.OutputRow) time.Time { return r.Competencia }}
		default:
			return nil, fmt.Errorf("coluna de saída desconhecida '%s'", name)
		}
		c.header = name
		c.dateLayout = dateLayout
		cols = append(cols, c)
	}
	return cols, nil
}

// format devolve o texto da célula: "." decimal com duas casas e datas no formato configurado.
func (c column) format(r domain.OutputRow) string {
	switch c.kind {
	case kindValue:
		return processor.FormatValue(c.value(r))
	case kindDate:
		return c.date(r).Format(c.dateLayout)
	}
	return c.text(r)
}

// writeExcel grava uma pasta de trabalho OOXML: cabeçalho em negrito e congelado,
// Valor numérico com duas casas e datas com o formato numérico dateFmt (ex.: dd/mm/yyyy).
func writeExcel(w io.Writer, sheetName, dateFmt string, cols []column, rows []domain.OutputRow) error {
	xlsx := excelize.NewFile()
	defer xlsx.Close()

	if err := xlsx.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("erro ao nomear planilha: %w", err)
	}

	headerStyle, err := xlsx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	valueStyle, err := xlsx.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}
	dateStyle, err := xlsx.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return err
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := xlsx.SetCellValue(sheetName, cell, c.header); err != nil {
			return err
		}
		widths[i] = utf8.RuneCountInString(c.header)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := xlsx.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for r, row := range rows {
		for i, c := range cols {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2) // +2 porque cabeçalho está na linha 1
			var err error
			switch c.kind {
			case kindValue:
				f, _ := c.value(row).Float64()
				if err = xlsx.SetCellFloat(sheetName, cell, f, 2, 64); err == nil {
					err = xlsx.SetCellStyle(sheetName, cell, cell, valueStyle)
				}
			case kindDate:
				if err = xlsx.SetCellValue(sheetName, cell, c.date(row)); err == nil {
					err = xlsx.SetCellStyle(sheetName, cell, cell, dateStyle)
				}
			default:
				err = xlsx.SetCellStr(sheetName, cell, c.text(row))
			}
			if err != nil {
				return fmt.Errorf("erro ao gravar célula %s: %w", cell, err)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(c.format(row)))
		}
	}

	for i, w := range widths {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		if err := xlsx.SetColWidth(sheetName, colName, colName, float64(columnWidth(w))); err != nil {
			return err
		}
	}

	if err := xlsx.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("erro ao congelar cabeçalho: %w", err)
	}

	return xlsx.Write(w)
}

// columnWidth: entre 12 e 40 caracteres, com folga de 2.
func columnWidth(contentLen int) int {
	return max(12, min(40, contentLen+2))
}

// writeCSV grava ";" como separador em Windows-1252, "." decimal e datas no formato configurado.
func writeCSV(w io.Writer, cols []column, rows []domain.OutputRow) error {
	encoder := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	tw := transform.NewWriter(w, encoder)
	writer := csv.NewWriter(tw)
	writer.Comma = ';'

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = sanitizeForCSV(c.header)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = sanitizeForCSV(c.format(row))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return tw.Close()
}

// sanitizeForCSV remove tabs e quebras de linha embutidas e troca outros controles por espaço.
func sanitizeForCSV(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			continue
		case r < 32:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
