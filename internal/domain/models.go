// package domain/models.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind defines the variant stored in a Cell.
type CellKind int

// Cell variants, resolved once when the workbook is loaded.
const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// Cell is one value of the raw sheet grid.
type Cell struct {
	Kind   CellKind
	Text   string
	Number decimal.Decimal
	Date   time.Time
}

func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: CellEmpty}
	}
	return Cell{Kind: CellText, Text: s}
}

func NumberCell(d decimal.Decimal) Cell {
	return Cell{Kind: CellNumber, Number: d}
}

func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Date: t}
}

// IsEmpty reports whether the cell holds no value or only whitespace.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && strings.TrimSpace(c.Text) == "")
}

// String renders the cell the way it is shown in logs and messages.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return strings.TrimSpace(c.Text)
	case CellNumber:
		return c.Number.String()
	case CellDate:
		return c.Date.Format("02/01/2006")
	}
	return ""
}

// Grid is the immutable 2-D view of a sheet, 0-indexed by (row, column).
type Grid struct {
	rows [][]Cell
	cols int
}

func NewGrid(rows [][]Cell) *Grid {
	g := &Grid{rows: rows}
	for _, r := range rows {
		if len(r) > g.cols {
			g.cols = len(r)
		}
	}
	return g
}

// At returns the cell at (row, col), or an empty cell when out of range.
func (g *Grid) At(row, col int) Cell {
	if g == nil || row < 0 || col < 0 || row >= len(g.rows) || col >= len(g.rows[row]) {
		return Cell{}
	}
	return g.rows[row][col]
}

func (g *Grid) Rows() int {
	if g == nil {
		return 0
	}
	return len(g.rows)
}

func (g *Grid) Cols() int {
	if g == nil {
		return 0
	}
	return g.cols
}

// Sheet pairs a sheet name with its grid.
type Sheet struct {
	Name string
	Grid *Grid
}

// Workbook holds every sheet of the input file in source order.
type Workbook struct {
	Sheets []Sheet
}

func (w *Workbook) SheetNames() []string {
	names := make([]string, 0, len(w.Sheets))
	for _, s := range w.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// Sheet looks a sheet up by its exact name.
func (w *Workbook) Sheet(name string) (*Grid, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s.Grid, true
		}
	}
	return nil, false
}

// ColumnOffsets are the absolute grid columns of a block's three fields.
type ColumnOffsets struct {
	Contrato    int `json:"contrato"`
	Valor       int `json:"valor"`
	DataCredito int `json:"data_credito"`
}

// BlockDescriptor identifies one detected block of the Layout sheet.
type BlockDescriptor struct {
	Document      string        `json:"documento"`
	FinancialPlan string        `json:"plano_financeiro"`
	HeaderRow     int           `json:"linha_cabecalho"`
	Columns       ColumnOffsets `json:"colunas"`
}

// Key returns the block identity "{Documento}-{PlanoFinanceiro}".
func (b BlockDescriptor) Key() string {
	return fmt.Sprintf("%s-%s", b.Document, b.FinancialPlan)
}

// RawRecord is one populated data row as read from the grid, before normalization.
type RawRecord struct {
	Row         int
	Contrato    Cell
	Valor       Cell
	DataCredito Cell
}

type RawBlock struct {
	Descriptor BlockDescriptor
	Records    []RawRecord
}

// Extraction is what the Layout Reader produces.
type Extraction struct {
	Sheet  string
	Blocks []RawBlock
	Issues []RowIssue
}

// RowIssue records a dropped row and why.
type RowIssue struct {
	BlockKey string `json:"bloco"`
	Row      int    `json:"linha"`
	Code     Code   `json:"codigo"`
	Reason   string `json:"motivo"`
}

// Record is a normalized data row.
type Record struct {
	Row         int
	Contrato    string
	Valor       decimal.Decimal
	DataCredito time.Time
}

type Block struct {
	Descriptor BlockDescriptor
	Records    []Record
}

func (b Block) Key() string {
	return b.Descriptor.Key()
}

// ExtractionResult holds the normalized blocks in source order.
type ExtractionResult struct {
	Blocks   []Block
	Issues   []RowIssue
	Warnings []string
}

// Block returns the block with the given key.
func (r ExtractionResult) Block(key string) (Block, bool) {
	for _, b := range r.Blocks {
		if b.Key() == key {
			return b, true
		}
	}
	return Block{}, false
}

func (r ExtractionResult) Keys() []string {
	keys := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		keys = append(keys, b.Key())
	}
	return keys
}

// TotalRecords counts records across all blocks.
func (r ExtractionResult) TotalRecords() int {
	n := 0
	for _, b := range r.Blocks {
		n += len(b.Records)
	}
	return n
}

// FilterSpec restricts which records survive processing. Empty fields mean no restriction.
type FilterSpec struct {
	DocumentKeys []string
	Plans        []string
	Dates        []time.Time
	From         *time.Time
	To           *time.Time
}

// OutputRow is one line of a generated file.
type OutputRow struct {
	Contrato    string
	Valor       decimal.Decimal
	Emissao     time.Time
	Vencimento  time.Time
	Competencia time.Time
}

// OutputFile describes a generated file.
type OutputFile struct {
	Path     string      `json:"caminho"`
	BlockKey string      `json:"bloco"`
	Rows     []OutputRow `json:"-"`
}

// Options is the listing used by the front end to populate its selection UI.
type Options struct {
	Documentos         []string            `json:"documentos"`
	PlanosPorDocumento map[string][]string `json:"planos_por_documento"`
	Datas              []string            `json:"datas"`
	DatasPorDocumento  map[string][]string `json:"datas_por_documento"`
	Contagens          map[string]int      `json:"contagens"`
}
