// Package insight é a capacidade opcional de explicar divergências em texto
// livre, consumida apenas pela camada de apresentação. O motor de
// conciliação nunca depende daqui.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DiscrepancySummary é o resumo mínimo enviado ao serviço de texto.
type DiscrepancySummary struct {
	InternalCte   string   `json:"internalCte"`
	InternalValue float64  `json:"internalValue"`
	InternalDate  string   `json:"internalDate"`
	CandidateRefs []string `json:"candidateRefs"`
	Notes         []string `json:"notes"`
}

// Explainer transforma um resumo de divergência numa explicação curta.
type Explainer func(ctx context.Context, summary DiscrepancySummary) (string, error)

// Noop devolve sempre vazio; usado quando nenhum serviço está configurado.
func Noop() Explainer {
	return func(context.Context, DiscrepancySummary) (string, error) {
		return "", nil
	}
}

type textResponse struct {
	Text string `json:"text"`
}

// NewHTTPExplainer cria um Explainer que envia o resumo em JSON para um
// serviço de texto e devolve o corpo `text` da resposta.
func NewHTTPExplainer(endpoint string, client *http.Client) Explainer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return func(ctx context.Context, summary DiscrepancySummary) (string, error) {
		body, err := json.Marshal(summary)
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("serviço de análise indisponível: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("serviço de análise respondeu %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		var parsed textResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return "", err
		}
		return parsed.Text, nil
	}
}
