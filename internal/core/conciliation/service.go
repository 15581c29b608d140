// package conciliation/service.go
package conciliation

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"conciliation-service/internal/core/normalize"
	"conciliation-service/internal/core/tabular"
	"conciliation-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Diferença de valor, em reais, abaixo da qual dois lançamentos são
// considerados o mesmo. Absorve arredondamento sem mascarar divergência real.
const valueEpsilon = 0.05

// Comprimento mínimo do lado mais curto num casamento por sufixo; evita
// colisões espúrias de referências curtas.
const minSuffixLen = 3

// ExternalFile é uma entrada do lote de ingestão externa: bytes do arquivo,
// nome de origem e o status financeiro que o arquivo representa.
type ExternalFile struct {
	Data     []byte
	FileName string
	Status   domain.ExternalStatus
}

// Service define a interface do motor de conciliação de CT-e.
type Service interface {
	IngestInternal(data []byte, fileName string, cfg domain.CteConfig, source domain.InternalSource) ([]domain.InternalRecord, error)
	IngestExternal(files []ExternalFile) []domain.ExternalRecord
	Reconcile(internal []domain.InternalRecord, external []domain.ExternalRecord, overrides domain.ConfirmedOverrideMap) []domain.ReconciliationResult
	Summarize(results []domain.ReconciliationResult) domain.DashboardStats
}

type service struct {
	logger *zap.Logger
}

// NewService cria um novo serviço de conciliação.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{logger: logger}
}

func cellAt(row domain.RawRow, idx int) domain.Cell {
	if idx < 0 || idx >= len(row) {
		return domain.EmptyCell
	}
	return row[idx]
}

// IngestInternal decodifica uma planilha operacional e materializa os
// registros internos. Payload binário ilegível é fatal para o arquivo:
// nenhuma sequência parcial é devolvida.
func (s *service) IngestInternal(data []byte, fileName string, cfg domain.CteConfig, source domain.InternalSource) ([]domain.InternalRecord, error) {
	rows, err := tabular.Decode(data, fileName)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler arquivo interno %q: %w", fileName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headerIdx, roles := tabular.InferInternalRoles(rows)

	var records []domain.InternalRecord
	for i, row := range rows[min(headerIdx+1, len(rows)):] {
		if len(row) < 2 {
			continue
		}

		value := normalize.ParseCurrency(cellAt(row, roles.Val))
		date := normalize.ParseDate(cellAt(row, roles.Date))

		rawCte := ""
		switch {
		case roles.Cte != tabular.Unassigned:
			rawCte = cellAt(row, roles.Cte).String()
		case roles.Transporte != tabular.Unassigned:
			rawCte = cellAt(row, roles.Transporte).String()
		default:
			rawCte = fmt.Sprintf("ROW-%d", i)
		}
		raw, normalized := normalize.NormalizeCte(rawCte)

		typeStr := string(source)
		if roles.Type != tabular.Unassigned {
			typeStr = cellAt(row, roles.Type).String()
		}

		// Linhas sem CT-e e sem valor são ruído (totais, rodapés).
		if normalized == "" && value == 0 {
			continue
		}

		original := raw
		if original == "" {
			original = "?"
		}

		records = append(records, domain.InternalRecord{
			ID:          uuid.NewString(),
			CteNumber:   normalized,
			OriginalCte: original,
			Date:        date,
			Value:       value,
			Category:    Categorize(value, cfg, typeStr),
			Source:      source,
			NeedsReview: value > 0 && (normalized == "" || date == ""),
		})
	}

	s.logger.Info("ingestão interna concluída",
		zap.String("arquivo", fileName),
		zap.String("origem", string(source)),
		zap.Int("registros", len(records)))
	return records, nil
}

var currencyShapeRegex = regexp.MustCompile(`[0-9].,[0-9]`)

// IngestExternal decodifica um lote de exports financeiros, acumulando os
// títulos na ordem dos arquivos. Falha de decodificação descarta apenas a
// contribuição daquele arquivo; os demais seguem.
func (s *service) IngestExternal(files []ExternalFile) []domain.ExternalRecord {
	var all []domain.ExternalRecord

	for _, item := range files {
		rows, err := tabular.Decode(item.Data, item.FileName)
		if err != nil {
			s.logger.Warn("arquivo externo descartado",
				zap.String("arquivo", item.FileName), zap.Error(err))
			continue
		}

		var validRows []domain.RawRow
		for _, row := range rows {
			if len(row) > 2 {
				validRows = append(validRows, row)
			}
		}
		if len(validRows) == 0 {
			continue
		}

		headerIdx, roles := tabular.InferExternalRoles(validRows)
		dataStart := 0
		if headerIdx != tabular.Unassigned {
			dataStart = headerIdx + 1
		}

		count := 0
		for _, row := range validRows[min(dataStart, len(validRows)):] {
			rec, ok := s.externalFromRow(row, roles, item)
			if !ok {
				continue
			}
			all = append(all, rec)
			count++
		}

		s.logger.Info("ingestão externa concluída",
			zap.String("arquivo", item.FileName),
			zap.String("status", string(item.Status)),
			zap.Int("registros", count))
	}

	return all
}

func (s *service) externalFromRow(row domain.RawRow, roles tabular.ExternalRoles, item ExternalFile) (domain.ExternalRecord, bool) {
	var value float64
	if c := cellAt(row, roles.Val); !c.IsEmpty() {
		value = normalize.ParseCurrency(c)
	} else {
		for _, cell := range row {
			str := cell.String()
			if (strings.Contains(str, "R$") || currencyShapeRegex.MatchString(str)) && !strings.Contains(str, "NF") {
				value = normalize.ParseCurrency(cell)
				break
			}
		}
	}

	date := ""
	if c := cellAt(row, roles.Date); !c.IsEmpty() {
		date = normalize.ParseDate(c)
	} else {
		for _, cell := range row {
			if d := normalize.ParseDate(cell); d != "" {
				date = d
				break
			}
		}
	}

	refNumber := ""
	if c := cellAt(row, roles.Ref); !c.IsEmpty() {
		_, refNumber = normalize.NormalizeCte(c.String())
	}
	if refNumber == "" {
		if c := cellAt(row, roles.Doc); !c.IsEmpty() {
			_, refNumber = normalize.NormalizeCte(c.String())
		} else {
			for i, cell := range row {
				if i == roles.Val || i == roles.Date || i == roles.Doc {
					continue
				}
				if _, n := normalize.NormalizeCte(cell.String()); len(n) >= 3 && len(n) < 15 {
					refNumber = n
					break
				}
			}
		}
	}

	docNumber := ""
	if c := cellAt(row, roles.Doc); !c.IsEmpty() {
		docNumber = c.String()
	} else if len(row) > 0 {
		docNumber = row[0].String()
	}

	if value == 0 && refNumber == "" {
		return domain.ExternalRecord{}, false
	}

	return domain.ExternalRecord{
		ID:        uuid.NewString(),
		DocNumber: docNumber,
		RefNumber: refNumber,
		Date:      date,
		Value:     value,
		Status:    item.Status,
		FileName:  item.FileName,
	}, true
}

// Reconcile decide, para cada registro interno e na ordem de entrada, seu
// desfecho de conciliação. Função pura: recalculada por inteiro a cada
// chamada, sem estado compartilhado. Precedência: vínculo manual confirmado,
// dados incompletos, casamento exato de CT-e, sugestão por sufixo com valor
// igual. Varre os externos na ordem de ingestão e fica com o primeiro
// candidato que satisfaz o predicado.
func (s *service) Reconcile(internal []domain.InternalRecord, external []domain.ExternalRecord, overrides domain.ConfirmedOverrideMap) []domain.ReconciliationResult {
	results := make([]domain.ReconciliationResult, 0, len(internal))

	for _, rec := range internal {
		results = append(results, reconcileOne(rec, external, overrides))
	}
	return results
}

func reconcileOne(rec domain.InternalRecord, external []domain.ExternalRecord, overrides domain.ConfirmedOverrideMap) domain.ReconciliationResult {
	if extID, ok := overrides[rec.ID]; ok {
		for i := range external {
			if external[i].ID == extID {
				return domain.ReconciliationResult{
					InternalID:     rec.ID,
					ExternalID:     external[i].ID,
					Status:         domain.StatusMatched,
					Notes:          []string{"Vínculo confirmado manualmente"},
					Record:         rec,
					MatchCandidate: &external[i],
				}
			}
		}
	}

	if rec.NeedsReview {
		return domain.ReconciliationResult{
			InternalID: rec.ID,
			Status:     domain.StatusManualReview,
			Notes:      []string{"Dados incompletos ou inválidos (Data/CTE)"},
			Record:     rec,
		}
	}

	var candidates []*domain.ExternalRecord
	for i := range external {
		if isCandidate(rec.CteNumber, external[i].RefNumber) {
			candidates = append(candidates, &external[i])
		}
	}

	if len(candidates) == 0 {
		return domain.ReconciliationResult{InternalID: rec.ID, Status: domain.StatusUnmatched, Record: rec}
	}

	for _, c := range candidates {
		if c.RefNumber != rec.CteNumber {
			continue
		}
		if math.Abs(c.Value-rec.Value) < valueEpsilon {
			return domain.ReconciliationResult{
				InternalID:     rec.ID,
				ExternalID:     c.ID,
				Status:         domain.StatusMatched,
				Record:         rec,
				MatchCandidate: c,
			}
		}
		return domain.ReconciliationResult{
			InternalID: rec.ID,
			ExternalID: c.ID,
			Status:     domain.StatusDiscrepancy,
			Notes: []string{fmt.Sprintf("CTE encontrado, mas valor diverge. Planilha: R$%.2f vs Extrato: R$%.2f",
				rec.Value, c.Value)},
			Record:         rec,
			MatchCandidate: c,
		}
	}

	for _, c := range candidates {
		if math.Abs(c.Value-rec.Value) < valueEpsilon {
			return domain.ReconciliationResult{
				InternalID: rec.ID,
				ExternalID: c.ID,
				Status:     domain.StatusManualReview,
				Notes: []string{fmt.Sprintf("Sugestão: CTE parcial (%s) com mesmo valor.",
					c.RefNumber)},
				Record:         rec,
				MatchCandidate: c,
			}
		}
	}

	return domain.ReconciliationResult{InternalID: rec.ID, Status: domain.StatusUnmatched, Record: rec}
}

// isCandidate aceita igualdade exata ou relação de sufixo entre as formas
// normalizadas, desde que o lado mais curto tenha ao menos 3 dígitos.
func isCandidate(cteNumber, refNumber string) bool {
	if refNumber == "" || cteNumber == "" {
		return false
	}
	if refNumber == cteNumber {
		return true
	}
	if min(len(refNumber), len(cteNumber)) < minSuffixLen {
		return false
	}
	return strings.HasSuffix(cteNumber, refNumber) || strings.HasSuffix(refNumber, cteNumber)
}

var monthNames = []string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// Summarize agrega os resultados para o painel: totais por status financeiro
// e pivô mensal por categoria. ADIANTADO soma também no total pago.
func (s *service) Summarize(results []domain.ReconciliationResult) domain.DashboardStats {
	var stats domain.DashboardStats
	pivot := make(map[string]*domain.MonthlyPivot)

	for _, item := range results {
		val := item.Record.Value

		if item.Status == domain.StatusMatched && item.MatchCandidate != nil {
			switch item.MatchCandidate.Status {
			case domain.ExternalPago:
				stats.Summary.Paid += val
				stats.Summary.PaidCount++
			case domain.ExternalAPagar:
				stats.Summary.Scheduled += val
				stats.Summary.ScheduledCount++
			case domain.ExternalAdiantado:
				stats.Summary.Anticipated += val
				stats.Summary.AnticipatedCount++
				stats.Summary.Paid += val
			}
		} else {
			stats.Summary.Pending += val
			stats.Summary.PendingCount++
		}

		if item.Record.Date == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", item.Record.Date)
		if err != nil {
			continue
		}
		key := t.Format("2006-01")
		entry, ok := pivot[key]
		if !ok {
			entry = &domain.MonthlyPivot{
				Key:   key,
				Label: fmt.Sprintf("%s/%02d", monthNames[t.Month()-1], t.Year()%100),
			}
			pivot[key] = entry
		}

		var cell *domain.CategoryCell
		switch item.Record.Category {
		case domain.CategoryRota:
			cell = &entry.Rota
		case domain.CategoryPuxada:
			cell = &entry.Puxada
		case domain.CategoryISS:
			cell = &entry.ISS
		default:
			cell = &entry.Acerto
		}
		cell.Qty++
		cell.Val += val
	}

	stats.Pivot = make([]domain.MonthlyPivot, 0, len(pivot))
	for _, entry := range pivot {
		stats.Pivot = append(stats.Pivot, *entry)
	}
	sort.Slice(stats.Pivot, func(i, j int) bool { return stats.Pivot[i].Key > stats.Pivot[j].Key })

	return stats
}
