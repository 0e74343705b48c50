package processor

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// Faixa de seriais do Excel aceita como data: 01/01/1950 a 31/12/2100.
const (
	minDateSerial = 18264
	maxDateSerial = 73051
)

// CanonicalDateLayout é o formato DD/MM/YYYY padrão da saída.
const CanonicalDateLayout = "02/01/2006"

var canonicalNumberRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseValue converte valores monetários em formato brasileiro ou americano.
// Com "." e "," presentes, o separador mais à direita é o decimal; um separador
// único é decimal; um separador repetido sem o outro é de milhar.
// O resultado é arredondado (não truncado) para duas casas.
func ParseValue(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, domain.InvalidValueError(raw)
	}

	// tratar sinais/parenteses
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasSuffix(s, "-") {
		neg = !neg
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	if !canonicalNumberRegex.MatchString(s) {
		return decimal.Zero, domain.InvalidValueError(raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.InvalidValueError(raw)
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// FormatValue devolve o valor com exatamente duas casas e "." decimal.
func FormatValue(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ValueFromCell normaliza a célula da coluna Valor.
func ValueFromCell(c domain.Cell) (decimal.Decimal, error) {
	switch c.Kind {
	case domain.CellNumber:
		return c.Number.Round(2), nil
	case domain.CellText:
		return ParseValue(c.Text)
	}
	return decimal.Zero, domain.InvalidValueError(c.String())
}

// DateFromCell normaliza a célula da coluna Data Crédito.
func DateFromCell(c domain.Cell) (time.Time, error) {
	switch c.Kind {
	case domain.CellDate:
		return dateOnly(c.Date), nil
	case domain.CellNumber:
		serial, _ := c.Number.Float64()
		return dateFromSerial(serial, c.String())
	case domain.CellText:
		return ParseDate(c.Text)
	}
	return time.Time{}, domain.InvalidDateError(c.String())
}

var dateLayouts = []string{"2/1/2006", "2-1-2006", "2.1.2006", "2006-1-2", "2006/1/2"}

// ParseDate aceita DD/MM/YYYY (com ou sem zeros, opcionalmente seguido de hora),
// ISO YYYY-MM-DD e seriais do Excel.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, domain.InvalidDateError(raw)
	}
	datePart := strings.Fields(s)[0]
	if idx := strings.Index(datePart, "T"); idx > 0 {
		datePart = datePart[:idx]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, datePart); err == nil {
			return t, nil
		}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		serial, _ := d.Float64()
		return dateFromSerial(serial, raw)
	}
	return time.Time{}, domain.InvalidDateError(raw)
}

// FormatDate devolve a data em DD/MM/YYYY, sem considerar a configuração.
func FormatDate(t time.Time) string {
	return t.Format(CanonicalDateLayout)
}

func dateFromSerial(serial float64, raw string) (time.Time, error) {
	if serial < minDateSerial || serial > maxDateSerial {
		return time.Time{}, domain.InvalidDateError(raw)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, domain.InvalidDateError(raw)
	}
	return dateOnly(t), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
