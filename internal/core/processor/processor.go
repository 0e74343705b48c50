package processor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schollz/closestmatch"
	"go.uber.org/zap"

	"github.com/rikelmyso7/br-service-cli/internal/config"
	"github.com/rikelmyso7/br-service-cli/internal/domain"
)

// Selection são os filtros como chegam da fronteira, ainda em texto.
type Selection struct {
	Documents []string
	Plans     []string
	Dates     []string
	From      string
	To        string
}

// Processor normaliza valores e datas e aplica os filtros do usuário.
type Processor struct {
	ignoreZero bool
	dateLayout string
	logger     *zap.Logger
}

func NewProcessor(cfg *config.Config, logger *zap.Logger) *Processor {
	layout := cfg.DateFormat
	if layout == "" {
		layout = CanonicalDateLayout
	}
	return &Processor{
		ignoreZero: cfg.IgnoreZeroValues,
		dateLayout: layout,
		logger:     logger,
	}
}

// FormatDate escreve a data no formato configurado.
func (p *Processor) FormatDate(t time.Time) string {
	return t.Format(p.dateLayout)
}

// ParseDate aceita o formato configurado e, depois, os formatos de ParseDate.
func (p *Processor) ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(p.dateLayout, strings.TrimSpace(raw)); err == nil {
		return dateOnly(t), nil
	}
	return ParseDate(raw)
}

// Process normaliza e filtra em uma única etapa.
func (p *Processor) Process(ext *domain.Extraction, spec domain.FilterSpec) domain.ExtractionResult {
	return Filter(p.Normalize(ext), spec)
}

// Normalize converte os registros brutos. Linhas com valor ou data inválidos são
// descartadas e registradas em Issues; a leitura continua.
func (p *Processor) Normalize(ext *domain.Extraction) domain.ExtractionResult {
	result := domain.ExtractionResult{
		Blocks: make([]domain.Block, 0, len(ext.Blocks)),
		Issues: append([]domain.RowIssue(nil), ext.Issues...),
	}

	for _, raw := range ext.Blocks {
		key := raw.Descriptor.Key()
		block := domain.Block{Descriptor: raw.Descriptor, Records: make([]domain.Record, 0, len(raw.Records))}

		for _, rr := range raw.Records {
			valor, err := ValueFromCell(rr.Valor)
			if err != nil {
				result.Issues = append(result.Issues, p.dropRow(key, rr.Row, domain.CodeOf(err), err.Error()))
				continue
			}
			data, err := DateFromCell(rr.DataCredito)
			if err != nil {
				result.Issues = append(result.Issues, p.dropRow(key, rr.Row, domain.CodeOf(err), err.Error()))
				continue
			}
			if p.ignoreZero && valor.IsZero() {
				result.Issues = append(result.Issues, p.dropRow(key, rr.Row, domain.CodeZeroValue, "valor zerado ignorado"))
				continue
			}
			block.Records = append(block.Records, domain.Record{
				Row:         rr.Row,
				Contrato:    rr.Contrato.String(),
				Valor:       valor,
				DataCredito: data,
			})
		}
		result.Blocks = append(result.Blocks, block)
	}
	return result
}

func (p *Processor) dropRow(key string, row int, code domain.Code, reason string) domain.RowIssue {
	p.logger.Warn("linha descartada",
		zap.String("bloco", key),
		zap.Int("linha", row),
		zap.String("codigo", string(code)),
		zap.String("motivo", reason))
	return domain.RowIssue{BlockKey: key, Row: row, Code: code, Reason: reason}
}

// Filter mantém os blocos selecionados e, dentro deles, os registros cujas datas
// passam no filtro. A ordem de origem é preservada. Um bloco selecionado que fica
// sem registros é removido e gera um aviso.
func Filter(result domain.ExtractionResult, spec domain.FilterSpec) domain.ExtractionResult {
	out := domain.ExtractionResult{
		Issues:   result.Issues,
		Warnings: append([]string(nil), result.Warnings...),
	}

	for _, b := range result.Blocks {
		if !matchesDocument(b.Descriptor, spec.DocumentKeys) || !matchesPlan(b.Descriptor, spec.Plans) {
			continue
		}
		records := make([]domain.Record, 0, len(b.Records))
		for _, r := range b.Records {
			if matchesDate(r.DataCredito, spec) {
				records = append(records, r)
			}
		}
		if len(records) == 0 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Sem dados para o bloco '%s' com os filtros informados", b.Key()))
			continue
		}
		out.Blocks = append(out.Blocks, domain.Block{Descriptor: b.Descriptor, Records: records})
	}
	return out
}

// matchesDocument aceita a chave completa "Documento-Plano" ou só o documento.
func matchesDocument(d domain.BlockDescriptor, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if strings.EqualFold(k, d.Key()) || strings.EqualFold(k, d.Document) {
			return true
		}
	}
	return false
}

func matchesPlan(d domain.BlockDescriptor, plans []string) bool {
	if len(plans) == 0 {
		return true
	}
	for _, p := range plans {
		if strings.EqualFold(strings.TrimSpace(p), d.FinancialPlan) {
			return true
		}
	}
	return false
}

func matchesDate(t time.Time, spec domain.FilterSpec) bool {
	if spec.From != nil && t.Before(*spec.From) {
		return false
	}
	if spec.To != nil && t.After(*spec.To) {
		return false
	}
	if len(spec.Dates) == 0 {
		return true
	}
	for _, d := range spec.Dates {
		if sameDay(d, t) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ValidateSelections confere a seleção contra o conteúdo normalizado e devolve o
// FilterSpec. Toda chave, plano ou data ausente no arquivo é listada no VALIDATION_ERROR.
func (p *Processor) ValidateSelections(result domain.ExtractionResult, sel Selection) (domain.FilterSpec, error) {
	var spec domain.FilterSpec
	var verr domain.ValidationError

	keys := result.Keys()
	for _, doc := range sel.Documents {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		if !documentExists(result, doc) {
			verr.InvalidDocuments = append(verr.InvalidDocuments, doc)
			if s := suggest(keys, doc); s != "" {
				if verr.Suggestions == nil {
					verr.Suggestions = map[string]string{}
				}
				verr.Suggestions[doc] = s
			}
			continue
		}
		spec.DocumentKeys = append(spec.DocumentKeys, doc)
	}

	for _, plan := range sel.Plans {
		plan = strings.TrimSpace(plan)
		if plan == "" {
			continue
		}
		if !planExists(result, plan) {
			verr.InvalidPlans = append(verr.InvalidPlans, plan)
			continue
		}
		spec.Plans = append(spec.Plans, plan)
	}

	present := map[string]bool{}
	for _, b := range result.Blocks {
		for _, r := range b.Records {
			present[dayKey(r.DataCredito)] = true
		}
	}
	for _, raw := range sel.Dates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := p.ParseDate(raw)
		if err != nil || !present[dayKey(t)] {
			verr.InvalidDates = append(verr.InvalidDates, raw)
			continue
		}
		spec.Dates = append(spec.Dates, t)
	}

	for _, bound := range []struct {
		raw  string
		dest **time.Time
	}{{sel.From, &spec.From}, {sel.To, &spec.To}} {
		if strings.TrimSpace(bound.raw) == "" {
			continue
		}
		t, err := p.ParseDate(bound.raw)
		if err != nil {
			verr.InvalidDates = append(verr.InvalidDates, strings.TrimSpace(bound.raw))
			continue
		}
		*bound.dest = &t
	}

	if err := verr.AsError(); err != nil {
		return domain.FilterSpec{}, err
	}
	return spec, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func documentExists(result domain.ExtractionResult, doc string) bool {
	for _, b := range result.Blocks {
		if matchesDocument(b.Descriptor, []string{doc}) {
			return true
		}
	}
	return false
}

func planExists(result domain.ExtractionResult, plan string) bool {
	for _, b := range result.Blocks {
		if matchesPlan(b.Descriptor, []string{plan}) {
			return true
		}
	}
	return false
}

// suggest devolve a chave mais parecida com a informada, se houver alguma.
func suggest(keys []string, input string) string {
	if len(keys) == 0 {
		return ""
	}
	cm := closestmatch.New(keys, []int{2, 3})
	return cm.Closest(input)
}

// BuildOptions lista documentos, planos e datas para a interface de seleção.
// Blocos sem registros também aparecem.
func (p *Processor) BuildOptions(result domain.ExtractionResult) domain.Options {
	opts := domain.Options{
		Documentos:         []string{},
		PlanosPorDocumento: map[string][]string{},
		Datas:              []string{},
		DatasPorDocumento:  map[string][]string{},
		Contagens:          map[string]int{},
	}

	allDates := map[time.Time]bool{}
	for _, b := range result.Blocks {
		key := b.Key()
		opts.Documentos = append(opts.Documentos, key)
		opts.Contagens[key] = len(b.Records)

		doc := b.Descriptor.Document
		if !contains(opts.PlanosPorDocumento[doc], b.Descriptor.FinancialPlan) {
			opts.PlanosPorDocumento[doc] = append(opts.PlanosPorDocumento[doc], b.Descriptor.FinancialPlan)
		}

		blockDates := map[time.Time]bool{}
		for _, r := range b.Records {
			blockDates[r.DataCredito] = true
			allDates[r.DataCredito] = true
		}
		opts.DatasPorDocumento[key] = p.sortedDates(blockDates)
	}
	for doc := range opts.PlanosPorDocumento {
		sort.Strings(opts.PlanosPorDocumento[doc])
	}
	opts.Datas = p.sortedDates(allDates)
	return opts
}

func (p *Processor) sortedDates(set map[time.Time]bool) []string {
	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, p.FormatDate(d))
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
