// Package report gera a planilha de conciliação em XLSX a partir dos
// resultados. Camada de apresentação: o motor não depende daqui.
package report

import (
	"fmt"

	"conciliation-service/internal/domain"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Relatório Conciliação"

var headers = []string{
	"CTE Interno", "Data Emissão", "Categoria", "Valor Interno (R$)",
	"STATUS CONCILIAÇÃO", "CTE/Ref Encontrado", "Valor Encontrado (R$)",
	"Data Pagamento/Vencto", "Origem Arquivo", "Observações",
}

// displayStatus traduz o status da conciliação para o rótulo do relatório.
// Registro casado exibe o status financeiro do título externo.
func displayStatus(r domain.ReconciliationResult) string {
	switch r.Status {
	case domain.StatusMatched:
		if r.MatchCandidate != nil {
			return string(r.MatchCandidate.Status)
		}
		return string(domain.ExternalPago)
	case domain.StatusDiscrepancy:
		return "DIVERGENTE"
	case domain.StatusManualReview:
		return "REVISÃO"
	default:
		return "PENDENTE"
	}
}

// Build monta o arquivo XLSX do relatório, uma linha por resultado.
func Build(results []domain.ReconciliationResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar aba do relatório: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("erro ao remover aba padrão: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	for i, r := range results {
		refFound := "-"
		valueFound := 0.0
		dateFound := "-"
		origin := "-"
		if r.MatchCandidate != nil {
			refFound = r.MatchCandidate.RefNumber
			valueFound = r.MatchCandidate.Value
			dateFound = r.MatchCandidate.Date
			origin = r.MatchCandidate.FileName
		}

		notes := ""
		for j, n := range r.Notes {
			if j > 0 {
				notes += "; "
			}
			notes += n
		}

		row := []interface{}{
			r.Record.OriginalCte,
			r.Record.Date,
			string(r.Record.Category),
			r.Record.Value,
			displayStatus(r),
			refFound,
			valueFound,
			dateFound,
			origin,
			notes,
		}
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "J", 20); err != nil {
		return nil, err
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("erro ao serializar relatório: %w", err)
	}
	return buffer.Bytes(), nil
}
