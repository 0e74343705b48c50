package layout

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// blockWidth é a largura de um bloco: Contrato, Valor, Data Crédito.
const blockWidth = 3

type role int

const (
	roleContrato role = iota
	roleValor
	roleDataCredito
)

var roleNames = map[role]string{
	roleContrato:    "Contrato",
	roleValor:       "Valor",
	roleDataCredito: "Data Crédito",
}

var canonicalHeaders = map[string]bool{
	domain.FoldText(roleNames[roleContrato]):    true,
	domain.FoldText(roleNames[roleValor]):       true,
	domain.FoldText(roleNames[roleDataCredito]): true,
}

// synonymTable guarda os sinônimos já normalizados com domain.FoldText.
type synonymTable struct {
	header    map[string]role
	documento map[string]bool
	plano     map[string]bool
}

func newSynonymTable(s config.Synonyms) synonymTable {
	t := synonymTable{
		header:    map[string]role{},
		documento: map[string]bool{},
		plano:     map[string]bool{},
	}
	add := func(words []string, r role) {
		for _, w := range words {
			t.header[domain.FoldText(w)] = r
		}
	}
	add(s.Contrato, roleContrato)
	add(s.Valor, roleValor)
	add(s.DataCredito, roleDataCredito)
	for _, w := range s.Documento {
		t.documento[domain.FoldText(w)] = true
	}
	for _, w := range s.PlanoFinanceiro {
		t.plano[domain.FoldText(w)] = true
	}
	return t
}

func (t synonymTable) headerRole(c domain.Cell) (role, bool) {
	if c.Kind != domain.CellText {
		return 0, false
	}
	r, ok := t.header[domain.FoldText(c.Text)]
	return r, ok
}

// Reader descobre os blocos da planilha Layout.
type Reader struct {
	sheetName string
	lookback  int
	synonyms  synonymTable
	logger    *zap.Logger
}

func NewReader(cfg *config.Config, logger *zap.Logger) *Reader {
	return &Reader{
		sheetName: cfg.SheetName,
		lookback:  cfg.MetadataLookback,
		synonyms:  newSynonymTable(cfg.Synonyms),
		logger:    logger,
	}
}

// Read localiza a planilha configurada e extrai seus blocos.
func (rd *Reader) Read(wb *domain.Workbook) (*domain.Extraction, error) {
	grid, ok := wb.Sheet(rd.sheetName)
	if !ok {
		return nil, domain.SheetNotFoundError(rd.sheetName, wb.SheetNames())
	}
	return rd.ReadGrid(grid)
}

// partialHeader é uma linha de cabeçalho com metadados mas sem uma das três colunas.
type partialHeader struct {
	row     int
	cols    []int
	found   []string
	missing string
}

// ReadGrid varre a grade da esquerda para a direita em faixas de três colunas.
func (rd *Reader) ReadGrid(g *domain.Grid) (*domain.Extraction, error) {
	ext := &domain.Extraction{Sheet: rd.sheetName}
	seen := map[string]int{}
	used := map[int]bool{}
	var partials []partialHeader

	for c := 0; c+blockWidth <= g.Cols(); {
		desc, ok, err := rd.detectBlock(g, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			if p, ok := rd.detectPartial(g, c); ok {
				partials = append(partials, p)
			}
			c++
			continue
		}

		key := desc.Key()
		if firstCol, dup := seen[key]; dup {
			return nil, domain.DuplicateBlockError(key, firstCol, c)
		}
		seen[key] = c
		for i := c; i < c+blockWidth; i++ {
			used[i] = true
		}

		records, issues := rd.readRecords(g, desc)
		ext.Blocks = append(ext.Blocks, domain.RawBlock{Descriptor: desc, Records: records})
		ext.Issues = append(ext.Issues, issues...)
		rd.logger.Debug("bloco detectado",
			zap.String("bloco", key),
			zap.Int("linha_cabecalho", desc.HeaderRow+1),
			zap.Int("coluna", c+1),
			zap.Int("registros", len(records)))
		c += blockWidth
	}

	for _, p := range partials {
		overlaps := false
		for _, col := range p.cols {
			if used[col] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			return nil, domain.ColumnMissingError(p.missing, p.row, p.found)
		}
	}

	if len(ext.Blocks) == 0 {
		return nil, domain.HeaderNotFoundError(rd.sheetName)
	}
	return ext, nil
}

// detectBlock procura, na faixa [c, c+3), a primeira linha de cabeçalho completa
// que tenha Documento e Plano Financeiro acima.
func (rd *Reader) detectBlock(g *domain.Grid, c int) (domain.BlockDescriptor, bool, error) {
	for r := 0; r < g.Rows(); r++ {
		offsets, ok, ambiguous := rd.headerAt(g, r, c)
		if !ok && !ambiguous {
			continue
		}
		doc, plan, found := rd.findMetadata(g, r, c)
		if !found {
			continue
		}
		if ambiguous {
			return domain.BlockDescriptor{}, false, domain.AmbiguousHeaderError(r, rd.headerRun(g, r, c))
		}
		return domain.BlockDescriptor{
			Document:      doc,
			FinancialPlan: plan,
			HeaderRow:     r,
			Columns:       offsets,
		}, true, nil
	}
	return domain.BlockDescriptor{}, false, nil
}

// headerAt lê a janela [c, c+3) da linha r. ambiguous indica que a janela faz parte
// de uma sequência de cabeçalhos sem alinhamento único.
func (rd *Reader) headerAt(g *domain.Grid, r, c int) (offsets domain.ColumnOffsets, ok, ambiguous bool) {
	cols, valid := rd.windowRoles(g, r, c)
	if !valid {
		return domain.ColumnOffsets{}, false, false
	}
	start, ambiguous := rd.alignment(g, r, c)
	if ambiguous {
		return domain.ColumnOffsets{}, false, true
	}
	if (c-start)%blockWidth != 0 {
		return domain.ColumnOffsets{}, false, false
	}
	return domain.ColumnOffsets{
		Contrato:    cols[roleContrato],
		Valor:       cols[roleValor],
		DataCredito: cols[roleDataCredito],
	}, true, false
}

// windowRoles devolve a coluna de cada papel quando [c, c+3) tem os três papéis distintos.
func (rd *Reader) windowRoles(g *domain.Grid, r, c int) (map[role]int, bool) {
	cols := map[role]int{}
	for i := c; i < c+blockWidth; i++ {
		ro, ok := rd.synonyms.headerRole(g.At(r, i))
		if !ok {
			return nil, false
		}
		if _, dup := cols[ro]; dup {
			return nil, false
		}
		cols[ro] = i
	}
	return cols, true
}

// runBounds devolve o intervalo [start, end) da sequência contígua de cabeçalhos
// da linha r que contém a coluna c.
func (rd *Reader) runBounds(g *domain.Grid, r, c int) (start, end int) {
	start, end = c, c
	for start > 0 {
		if _, ok := rd.synonyms.headerRole(g.At(r, start-1)); !ok {
			break
		}
		start--
	}
	for end < g.Cols() {
		if _, ok := rd.synonyms.headerRole(g.At(r, end)); !ok {
			break
		}
		end++
	}
	return start, end
}

func (rd *Reader) headerRun(g *domain.Grid, r, c int) []string {
	start, end := rd.runBounds(g, r, c)
	found := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		found = append(found, g.At(r, i).String())
	}
	return found
}

// alignment decide onde começam as janelas de três colunas na sequência de cabeçalhos
// que contém c, para blocos encostados não serem lidos deslocados. Se a sequência não
// é múltipla de três, sobra ao menos uma coluna avulsa: vence o deslocamento cujas
// janelas usam os nomes canônicos. Empate é ambíguo.
func (rd *Reader) alignment(g *domain.Grid, r, c int) (start int, ambiguous bool) {
	runStart, runEnd := rd.runBounds(g, r, c)
	extra := (runEnd - runStart) % blockWidth
	if extra == 0 {
		return runStart, false
	}

	best, bestScore, tie := 0, -1, false
	for offset := 0; offset <= extra; offset++ {
		score := rd.alignmentScore(g, r, runStart+offset, runEnd)
		switch {
		case score > bestScore:
			best, bestScore, tie = offset, score, false
		case score == bestScore:
			tie = true
		}
	}
	return runStart + best, tie
}

// alignmentScore pontua as janelas a partir de from: cada janela válida vale mais que
// qualquer soma de nomes canônicos.
func (rd *Reader) alignmentScore(g *domain.Grid, r, from, end int) int {
	score := 0
	for w := from; w+blockWidth <= end; w += blockWidth {
		if _, ok := rd.windowRoles(g, r, w); !ok {
			continue
		}
		score += 100
		for i := w; i < w+blockWidth; i++ {
			if canonicalHeaders[domain.FoldText(g.At(r, i).Text)] {
				score++
			}
		}
	}
	return score
}

func (rd *Reader) detectPartial(g *domain.Grid, c int) (partialHeader, bool) {
	for r := 0; r < g.Rows(); r++ {
		present := map[role]int{}
		for i := c; i < c+blockWidth; i++ {
			if ro, ok := rd.synonyms.headerRole(g.At(r, i)); ok {
				if _, dup := present[ro]; !dup {
					present[ro] = i
				}
			}
		}
		if len(present) != blockWidth-1 {
			continue
		}
		if _, _, ok := rd.findMetadata(g, r, c); !ok {
			continue
		}
		p := partialHeader{row: r}
		for _, ro := range []role{roleContrato, roleValor, roleDataCredito} {
			col, ok := present[ro]
			if !ok {
				p.missing = roleNames[ro]
				continue
			}
			p.cols = append(p.cols, col)
			p.found = append(p.found, g.At(r, col).String())
		}
		sort.Ints(p.cols)
		return p, true
	}
	return partialHeader{}, false
}

// findMetadata sobe a partir do cabeçalho procurando os rótulos Documento e Plano
// Financeiro dentro da faixa. O valor é a célula à direita, a de baixo, ou o texto
// após ":" na própria célula.
func (rd *Reader) findMetadata(g *domain.Grid, header, c int) (doc, plan string, ok bool) {
	stop := header - rd.lookback
	if stop < 0 {
		stop = 0
	}
	for r := header - 1; r >= stop; r-- {
		for i := c; i < c+blockWidth; i++ {
			cell := g.At(r, i)
			if cell.Kind != domain.CellText {
				continue
			}
			label, inline := splitLabel(cell.Text)
			isDoc := rd.synonyms.documento[label]
			isPlan := rd.synonyms.plano[label]
			if !isDoc && !isPlan {
				continue
			}
			value := inline
			if value == "" {
				value = rd.labelValue(g, r, i, header)
			}
			if value == "" {
				continue
			}
			if isDoc && doc == "" {
				doc = value
			} else if isPlan && plan == "" {
				plan = value
			}
		}
		if doc != "" && plan != "" {
			return doc, plan, true
		}
	}
	return "", "", false
}

// splitLabel separa "Documento: AZ" em ("documento", "AZ"); "Documento:" vira ("documento", "").
func splitLabel(text string) (label, value string) {
	if idx := strings.Index(text, ":"); idx != -1 {
		return domain.FoldText(text[:idx]), strings.TrimSpace(text[idx+1:])
	}
	return domain.FoldText(text), ""
}

func (rd *Reader) labelValue(g *domain.Grid, r, c, header int) string {
	if right := g.At(r, c+1); !right.IsEmpty() && !rd.isLabel(right) {
		return right.String()
	}
	if r+1 < header {
		if below := g.At(r+1, c); !below.IsEmpty() && !rd.isLabel(below) {
			return below.String()
		}
	}
	return ""
}

func (rd *Reader) isLabel(c domain.Cell) bool {
	if c.Kind != domain.CellText {
		return false
	}
	label, _ := splitLabel(c.Text)
	return rd.synonyms.documento[label] || rd.synonyms.plano[label]
}

// readRecords lê as linhas abaixo do cabeçalho até a primeira linha totalmente vazia
// nas três colunas. Linhas incompletas são descartadas e registradas.
func (rd *Reader) readRecords(g *domain.Grid, desc domain.BlockDescriptor) ([]domain.RawRecord, []domain.RowIssue) {
	var records []domain.RawRecord
	var issues []domain.RowIssue
	cols := desc.Columns

	for r := desc.HeaderRow + 1; r < g.Rows(); r++ {
		rec := domain.RawRecord{
			Row:         r + 1,
			Contrato:    g.At(r, cols.Contrato),
			Valor:       g.At(r, cols.Valor),
			DataCredito: g.At(r, cols.DataCredito),
		}
		if rec.Contrato.IsEmpty() && rec.Valor.IsEmpty() && rec.DataCredito.IsEmpty() {
			break
		}

		var missing []string
		if rec.Contrato.IsEmpty() {
			missing = append(missing, roleNames[roleContrato])
		}
		if rec.Valor.IsEmpty() {
			missing = append(missing, roleNames[roleValor])
		}
		if rec.DataCredito.IsEmpty() {
			missing = append(missing, roleNames[roleDataCredito])
		}
		if len(missing) > 0 {
			issue := domain.RowIssue{
				BlockKey: desc.Key(),
				Row:      r + 1,
				Code:     domain.CodeIncompleteRow,
				Reason:   "linha sem " + strings.Join(missing, ", "),
			}
			issues = append(issues, issue)
			rd.logger.Warn("linha descartada",
				zap.String("bloco", issue.BlockKey),
				zap.Int("linha", issue.Row),
				zap.String("motivo", issue.Reason))
			continue
		}
		records = append(records, rec)
	}
	return records, issues
}
