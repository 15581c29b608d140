package conciliation

import (
	"testing"

	"conciliation-service/internal/core/tabular"
	"conciliation-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() Service {
	return NewService(nil)
}

func internalRec(id, cte string, value float64) domain.InternalRecord {
	return domain.InternalRecord{
		ID:          id,
		CteNumber:   cte,
		OriginalCte: cte,
		Date:        "2025-11-26",
		Value:       value,
		Category:    domain.CategoryRota,
		Source:      domain.SourceRota,
	}
}

func externalRec(id, ref string, value float64, status domain.ExternalStatus) domain.ExternalRecord {
	return domain.ExternalRecord{
		ID:        id,
		DocNumber: "NF-" + id,
		RefNumber: ref,
		Date:      "2025-11-26",
		Value:     value,
		Status:    status,
		FileName:  "extrato.csv",
	}
}

func TestReconcileExactMatch(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "3057", 1350.00)}
	external := []domain.ExternalRecord{externalRec("e1", "3057", 1350.02, domain.ExternalPago)}

	results := svc.Reconcile(internal, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusMatched, results[0].Status)
	assert.Equal(t, "e1", results[0].ExternalID)
	require.NotNil(t, results[0].MatchCandidate)
	assert.Equal(t, domain.ExternalPago, results[0].MatchCandidate.Status)
}

func TestReconcileDiscrepancy(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "3057", 100.00)}
	external := []domain.ExternalRecord{externalRec("e1", "3057", 150.00, domain.ExternalPago)}

	results := svc.Reconcile(internal, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusDiscrepancy, results[0].Status)
	assert.Equal(t, "e1", results[0].ExternalID)
	require.Len(t, results[0].Notes, 1)
	assert.Contains(t, results[0].Notes[0], "100.00")
	assert.Contains(t, results[0].Notes[0], "150.00")
}

func TestReconcileUnmatched(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "3057", 1350.00)}

	results := svc.Reconcile(internal, nil, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusUnmatched, results[0].Status)
	assert.Empty(t, results[0].ExternalID)
}

func TestReconcileSuffixSuggestion(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "42500", 500.00)}
	external := []domain.ExternalRecord{externalRec("e1", "2500", 500.00, domain.ExternalAPagar)}

	results := svc.Reconcile(internal, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusManualReview, results[0].Status)
	assert.Equal(t, "e1", results[0].ExternalID)
	require.Len(t, results[0].Notes, 1)
	assert.Contains(t, results[0].Notes[0], "2500")
}

func TestReconcileSuffixTooShort(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "512", 500.00)}
	external := []domain.ExternalRecord{externalRec("e1", "12", 500.00, domain.ExternalPago)}

	results := svc.Reconcile(internal, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusUnmatched, results[0].Status)
}

func TestReconcileSuffixWithDifferentValueStaysUnmatched(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "42500", 500.00)}
	external := []domain.ExternalRecord{externalRec("e1", "2500", 999.00, domain.ExternalPago)}

	results := svc.Reconcile(internal, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusUnmatched, results[0].Status)
}

func TestReconcileNeedsReview(t *testing.T) {
	svc := newTestService()
	rec := internalRec("i1", "3057", 1350.00)
	rec.NeedsReview = true
	external := []domain.ExternalRecord{externalRec("e1", "3057", 1350.00, domain.ExternalPago)}

	results := svc.Reconcile([]domain.InternalRecord{rec}, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusManualReview, results[0].Status)
	require.Len(t, results[0].Notes, 1)
	assert.Contains(t, results[0].Notes[0], "incompletos")
}

func TestReconcileOverrideBeatsEverything(t *testing.T) {
	svc := newTestService()
	rec := internalRec("i1", "", 1350.00)
	rec.NeedsReview = true
	external := []domain.ExternalRecord{externalRec("e1", "9999", 42.00, domain.ExternalPago)}
	overrides := domain.ConfirmedOverrideMap{"i1": "e1"}

	results := svc.Reconcile([]domain.InternalRecord{rec}, external, overrides)

	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusMatched, results[0].Status)
	assert.Equal(t, "e1", results[0].ExternalID)
	require.Len(t, results[0].Notes, 1)
	assert.Contains(t, results[0].Notes[0], "manualmente")
}

func TestReconcileFirstCandidateWins(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{internalRec("i1", "3057", 1350.00)}
	external := []domain.ExternalRecord{
		externalRec("e1", "3057", 1350.00, domain.ExternalPago),
		externalRec("e2", "3057", 1350.00, domain.ExternalPago),
	}

	results := svc.Reconcile(internal, external, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "e1", results[0].ExternalID)
}

func TestReconcileIsDeterministicAndOrderPreserving(t *testing.T) {
	svc := newTestService()
	internal := []domain.InternalRecord{
		internalRec("i1", "3057", 1350.00),
		internalRec("i2", "99", 200.00),
		internalRec("i3", "42500", 500.00),
	}
	external := []domain.ExternalRecord{
		externalRec("e1", "2500", 500.00, domain.ExternalAPagar),
		externalRec("e2", "3057", 1350.00, domain.ExternalPago),
	}

	first := svc.Reconcile(internal, external, nil)
	second := svc.Reconcile(internal, external, nil)

	require.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "i1", first[0].InternalID)
	assert.Equal(t, "i2", first[1].InternalID)
	assert.Equal(t, "i3", first[2].InternalID)
}

func TestIngestInternalCSV(t *testing.T) {
	svc := newTestService()
	data := []byte("NUMERO;TRANSPORTE;DT;VALOR\n3057-1;SP-RJ;26/11/2025;1.350,00\n")

	records, err := svc.IngestInternal(data, "rotas.csv", domain.DefaultConfig(), domain.SourceRota)

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "3057", rec.CteNumber)
	assert.Equal(t, "3057-1", rec.OriginalCte)
	assert.Equal(t, "2025-11-26", rec.Date)
	assert.InDelta(t, 1350.00, rec.Value, 0.0001)
	assert.Equal(t, domain.CategoryRota, rec.Category)
	assert.Equal(t, domain.SourceRota, rec.Source)
	assert.False(t, rec.NeedsReview)
}

func TestIngestInternalSkipsNoiseAndFlagsIncomplete(t *testing.T) {
	svc := newTestService()
	data := []byte("NUMERO;DT;VALOR\n;;\nTOTAL;;\n3057;data ruim;1.350,00\n")

	records, err := svc.IngestInternal(data, "rotas.csv", domain.DefaultConfig(), domain.SourceRota)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3057", records[0].CteNumber)
	assert.Empty(t, records[0].Date)
	assert.True(t, records[0].NeedsReview)
}

func TestIngestInternalUnreadableWorkbook(t *testing.T) {
	svc := newTestService()

	_, err := svc.IngestInternal([]byte("lixo binário"), "planilha.xlsx", domain.DefaultConfig(), domain.SourceRota)

	require.Error(t, err)
	assert.ErrorIs(t, err, tabular.ErrUnreadableWorkbook)
}

func TestIngestExternalCSV(t *testing.T) {
	svc := newTestService()
	data := []byte("Documento;Referencia;Valor;Data Doc\nNF-1;CT-3057;1.350,00;26/11/2025\n")

	records := svc.IngestExternal([]ExternalFile{{Data: data, FileName: "extrato.csv", Status: domain.ExternalPago}})

	require.Len(t, records, 1)
	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "3057", rec.RefNumber)
	assert.InDelta(t, 1350.00, rec.Value, 0.0001)
	assert.Equal(t, "2025-11-26", rec.Date)
	assert.Equal(t, domain.ExternalPago, rec.Status)
	assert.Equal(t, "extrato.csv", rec.FileName)
}

func TestIngestExternalCorruptFileOnlySkipsItself(t *testing.T) {
	svc := newTestService()
	good := []byte("Documento;Referencia;Valor;Data Doc\nNF-1;CT-3057;1.350,00;26/11/2025\n")

	records := svc.IngestExternal([]ExternalFile{
		{Data: []byte("não é planilha"), FileName: "corrompido.xlsx", Status: domain.ExternalPago},
		{Data: good, FileName: "extrato.csv", Status: domain.ExternalAPagar},
	})

	require.Len(t, records, 1)
	assert.Equal(t, "extrato.csv", records[0].FileName)
	assert.Equal(t, domain.ExternalAPagar, records[0].Status)
}

func TestSummarize(t *testing.T) {
	svc := newTestService()

	pago := externalRec("e1", "1", 100.00, domain.ExternalPago)
	adiantado := externalRec("e2", "2", 50.00, domain.ExternalAdiantado)

	rotaOutubro := internalRec("i3", "3", 30.00)
	rotaOutubro.Date = "2025-10-05"

	puxadaNovembro := internalRec("i2", "2", 50.00)
	puxadaNovembro.Category = domain.CategoryPuxada

	results := []domain.ReconciliationResult{
		{InternalID: "i1", ExternalID: "e1", Status: domain.StatusMatched, Record: internalRec("i1", "1", 100.00), MatchCandidate: &pago},
		{InternalID: "i2", ExternalID: "e2", Status: domain.StatusMatched, Record: puxadaNovembro, MatchCandidate: &adiantado},
		{InternalID: "i3", Status: domain.StatusUnmatched, Record: rotaOutubro},
	}

	stats := svc.Summarize(results)

	// ADIANTADO soma no total pago além do próprio balde.
	assert.InDelta(t, 150.00, stats.Summary.Paid, 0.0001)
	assert.Equal(t, 1, stats.Summary.PaidCount)
	assert.InDelta(t, 50.00, stats.Summary.Anticipated, 0.0001)
	assert.Equal(t, 1, stats.Summary.AnticipatedCount)
	assert.InDelta(t, 30.00, stats.Summary.Pending, 0.0001)
	assert.Equal(t, 1, stats.Summary.PendingCount)

	require.Len(t, stats.Pivot, 2)
	assert.Equal(t, "2025-11", stats.Pivot[0].Key)
	assert.Equal(t, "Novembro/25", stats.Pivot[0].Label)
	assert.Equal(t, 1, stats.Pivot[0].Rota.Qty)
	assert.InDelta(t, 100.00, stats.Pivot[0].Rota.Val, 0.0001)
	assert.Equal(t, 1, stats.Pivot[0].Puxada.Qty)
	assert.Equal(t, "2025-10", stats.Pivot[1].Key)
	assert.Equal(t, 1, stats.Pivot[1].Rota.Qty)
}
