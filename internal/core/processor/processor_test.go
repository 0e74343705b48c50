package processor

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

func day(d, m int) time.Time {
	return time.Date(2025, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func rawRecord(row int, contrato, valor, data string) domain.RawRecord {
	return domain.RawRecord{
		Row:         row,
		Contrato:    domain.TextCell(contrato),
		Valor:       domain.TextCell(valor),
		DataCredito: domain.TextCell(data),
	}
}

func sampleExtraction() *domain.Extraction {
	return &domain.Extraction{
		Sheet: "Layout",
		Blocks: []domain.RawBlock{
			{
				Descriptor: domain.BlockDescriptor{Document: "AZ", FinancialPlan: "1.01.02.01", HeaderRow: 2},
				Records: []domain.RawRecord{
					rawRecord(4, "C-1", "1.234,56", "05/05/2025"),
					rawRecord(5, "C-2", "628.91", "27/05/2025"),
					rawRecord(6, "C-3", "10,00", "05/05/2025"),
				},
			},
			{
				Descriptor: domain.BlockDescriptor{Document: "REG", FinancialPlan: "1.04.01.08", HeaderRow: 2},
				Records: []domain.RawRecord{
					rawRecord(4, "R-1", "1,00", "06/05/2025"),
					rawRecord(5, "R-2", "2,00", "27/05/2025"),
				},
			},
			{
				Descriptor: domain.BlockDescriptor{Document: "VAZIO", FinancialPlan: "9", HeaderRow: 2},
			},
		},
	}
}

func newTestProcessor(t *testing.T) *Processor {
	return NewProcessor(config.Default(), zaptest.NewLogger(t))
}

func TestNormalize_DropsInvalidRowsAndKeepsOrder(t *testing.T) {
	ext := sampleExtraction()
	ext.Blocks[0].Records = append(ext.Blocks[0].Records,
		rawRecord(7, "C-4", "abc", "05/05/2025"),
		rawRecord(8, "C-5", "1,00", "31/02/2025"),
		rawRecord(9, "C-6", "0,00", "05/05/2025"),
	)

	result := newTestProcessor(t).Normalize(ext)
	require.Len(t, result.Blocks, 3)

	az := result.Blocks[0]
	require.Len(t, az.Records, 3)
	assert.Equal(t, []string{"C-1", "C-2", "C-3"}, []string{az.Records[0].Contrato, az.Records[1].Contrato, az.Records[2].Contrato})
	assert.True(t, az.Records[0].Valor.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, day(27, 5), az.Records[1].DataCredito)

	require.Len(t, result.Issues, 3)
	assert.Equal(t, domain.CodeInvalidValue, result.Issues[0].Code)
	assert.Equal(t, 7, result.Issues[0].Row)
	assert.Equal(t, domain.CodeInvalidDate, result.Issues[1].Code)
	assert.Equal(t, domain.CodeZeroValue, result.Issues[2].Code)

	vazio, ok := result.Block("VAZIO-9")
	require.True(t, ok)
	assert.Empty(t, vazio.Records)
	_, ok = result.Block("AZ-9")
	assert.False(t, ok)
}

func TestNormalize_KeepsZeroWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.IgnoreZeroValues = false
	ext := &domain.Extraction{Blocks: []domain.RawBlock{{
		Descriptor: domain.BlockDescriptor{Document: "AZ", FinancialPlan: "1"},
		Records:    []domain.RawRecord{rawRecord(4, "C-1", "0,00", "05/05/2025")},
	}}}

	result := NewProcessor(cfg, zaptest.NewLogger(t)).Normalize(ext)
	assert.Len(t, result.Blocks[0].Records, 1)
}

func TestFilter_EmptySpecIsIdentity(t *testing.T) {
	normalized := newTestProcessor(t).Normalize(sampleExtraction())
	filtered := Filter(normalized, domain.FilterSpec{})

	require.Len(t, filtered.Blocks, 2)
	assert.Equal(t, normalized.Blocks[0], filtered.Blocks[0])
	assert.Equal(t, normalized.Blocks[1], filtered.Blocks[1])
	assert.Len(t, filtered.Warnings, 1)
	assert.Contains(t, filtered.Warnings[0], "VAZIO-9")
}

func TestFilter_ByDocumentAndDate(t *testing.T) {
	normalized := newTestProcessor(t).Normalize(sampleExtraction())
	filtered := Filter(normalized, domain.FilterSpec{
		DocumentKeys: []string{"AZ-1.01.02.01"},
		Dates:        []time.Time{day(5, 5)},
	})

	require.Len(t, filtered.Blocks, 1)
	b := filtered.Blocks[0]
	assert.Equal(t, "AZ-1.01.02.01", b.Key())
	require.Len(t, b.Records, 2)
	assert.Equal(t, "C-1", b.Records[0].Contrato)
	assert.Equal(t, "C-3", b.Records[1].Contrato)
	assert.Empty(t, filtered.Warnings)
}

func TestFilter_BareDocumentPlanAndRange(t *testing.T) {
	normalized := newTestProcessor(t).Normalize(sampleExtraction())
	from, to := day(6, 5), day(31, 5)

	filtered := Filter(normalized, domain.FilterSpec{
		DocumentKeys: []string{"reg", "AZ"},
		Plans:        []string{"1.04.01.08"},
		From:         &from,
		To:           &to,
	})
	require.Len(t, filtered.Blocks, 1)
	assert.Equal(t, "REG-1.04.01.08", filtered.Blocks[0].Key())
	assert.Len(t, filtered.Blocks[0].Records, 2)
}

func TestFilter_BlockWithoutMatchesBecomesWarning(t *testing.T) {
	normalized := newTestProcessor(t).Normalize(sampleExtraction())
	filtered := Filter(normalized, domain.FilterSpec{
		DocumentKeys: []string{"REG-1.04.01.08"},
		Dates:        []time.Time{day(5, 5)},
	})

	assert.Empty(t, filtered.Blocks)
	require.Len(t, filtered.Warnings, 1)
	assert.Contains(t, filtered.Warnings[0], "REG-1.04.01.08")
}

func TestValidateSelections(t *testing.T) {
	proc := newTestProcessor(t)
	normalized := proc.Normalize(sampleExtraction())

	spec, err := proc.ValidateSelections(normalized, Selection{
		Documents: []string{"AZ-1.01.02.01", " REG "},
		Dates:     []string{"5/5/2025"},
		From:      "2025-05-01",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AZ-1.01.02.01", "REG"}, spec.DocumentKeys)
	assert.Equal(t, []time.Time{day(5, 5)}, spec.Dates)
	require.NotNil(t, spec.From)
	assert.Equal(t, day(1, 5), *spec.From)
	assert.Nil(t, spec.To)
}

func TestValidateSelections_ListsEveryInvalidSelection(t *testing.T) {
	proc := newTestProcessor(t)
	normalized := proc.Normalize(sampleExtraction())

	_, err := proc.ValidateSelections(normalized, Selection{
		Documents: []string{"AZ-1.01.02.02", "XPTO"},
		Plans:     []string{"7.7"},
		Dates:     []string{"01/01/2020", "32/13/2025"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	msg := err.Error()
	assert.Contains(t, msg, "AZ-1.01.02.02")
	assert.Contains(t, msg, "XPTO")
	assert.Contains(t, msg, "7.7")
	assert.Contains(t, msg, "01/01/2020")
	assert.Contains(t, msg, "32/13/2025")
	assert.Contains(t, msg, "você quis dizer AZ-1.01.02.01?")
}

func TestBuildOptions(t *testing.T) {
	proc := newTestProcessor(t)
	opts := proc.BuildOptions(proc.Normalize(sampleExtraction()))

	assert.Equal(t, []string{"AZ-1.01.02.01", "REG-1.04.01.08", "VAZIO-9"}, opts.Documentos)
	assert.Equal(t, []string{"05/05/2025", "06/05/2025", "27/05/2025"}, opts.Datas)
	assert.Equal(t, []string{"1.01.02.01"}, opts.PlanosPorDocumento["AZ"])
	assert.Equal(t, []string{"05/05/2025", "27/05/2025"}, opts.DatasPorDocumento["AZ-1.01.02.01"])
	assert.Equal(t, []string{}, opts.DatasPorDocumento["VAZIO-9"])
	assert.Equal(t, 3, opts.Contagens["AZ-1.01.02.01"])
	assert.Equal(t, 0, opts.Contagens["VAZIO-9"])
}

func TestConfiguredDateFormat(t *testing.T) {
	cfg := config.Default()
	cfg.DateFormat = "2006-01-02"
	proc := NewProcessor(cfg, zaptest.NewLogger(t))
	normalized := proc.Normalize(sampleExtraction())

	opts := proc.BuildOptions(normalized)
	assert.Equal(t, []string{"2025-05-05", "2025-05-06", "2025-05-27"}, opts.Datas)

	// as datas listadas voltam como filtro, e DD/MM/YYYY continua aceito
	spec, err := proc.ValidateSelections(normalized, Selection{Dates: []string{opts.Datas[0], "27/05/2025"}})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(5, 5), day(27, 5)}, spec.Dates)
	assert.Equal(t, "2025-05-27", proc.FormatDate(day(27, 5)))
}
