// package domain/models.go
package domain

// CteCategory classifica um CT-e interno.
type CteCategory string

// Categorias possíveis de um CT-e.
const (
	CategoryRota    CteCategory = "ROTA"
	CategoryPuxada  CteCategory = "PUXADA"
	CategoryISS     CteCategory = "ISS"
	CategoryAcerto  CteCategory = "ACERTO"
	CategoryUnknown CteCategory = "DESCONHECIDO"
)

// MatchStatus define o resultado da conciliação de um registro interno.
type MatchStatus string

// Resultados possíveis da conciliação.
const (
	StatusMatched      MatchStatus = "MATCHED"
	StatusUnmatched    MatchStatus = "UNMATCHED"
	StatusDiscrepancy  MatchStatus = "DISCREPANCY"   // encontrado, mas valor diverge
	StatusManualReview MatchStatus = "MANUAL_REVIEW" // CT-e inválido ou dados faltando
)

// InternalSource indica de qual planilha operacional o registro veio.
type InternalSource string

const (
	SourcePuxada InternalSource = "PUXADA"
	SourceRota   InternalSource = "ROTA"
)

// ExternalStatus é o status financeiro carregado do CSV de origem.
type ExternalStatus string

const (
	ExternalPago      ExternalStatus = "PAGO"
	ExternalAPagar    ExternalStatus = "A PAGAR"
	ExternalAdiantado ExternalStatus = "ADIANTADO"
)

// CteConfig parametriza a categorização por valor. Pertence ao chamador;
// o motor apenas lê.
type CteConfig struct {
	RotaValue          float64   `json:"rotaValue"`
	PuxadaValues       []float64 `json:"puxadaValues"`
	PuxadaMaxThreshold float64   `json:"puxadaMaxThreshold"`
}

// DefaultConfig retorna a configuração padrão de categorização.
func DefaultConfig() CteConfig {
	return CteConfig{
		RotaValue:          1350.00,
		PuxadaValues:       []float64{3150.00, 6300.00},
		PuxadaMaxThreshold: 10000.00,
	}
}

// InternalRecord é um CT-e de planilha operacional aguardando confirmação
// financeira. Imutável após a ingestão.
type InternalRecord struct {
	ID          string         `json:"id"`
	CteNumber   string         `json:"cteNumber"`   // normalizado: só dígitos, sem zeros à esquerda
	OriginalCte string         `json:"originalCte"` // forma de exibição
	Date        string         `json:"date"`        // ISO ou vazio
	Value       float64        `json:"value"`
	Category    CteCategory    `json:"category"`
	Source      InternalSource `json:"source"`
	NeedsReview bool           `json:"needsReview"`
}

// ExternalRecord é um título do extrato financeiro acumulado.
// Imutável após a ingestão.
type ExternalRecord struct {
	ID        string         `json:"id"`
	DocNumber string         `json:"docNumber"`
	RefNumber string         `json:"refNumber"` // CT-e normalizado extraído da referência
	Date      string         `json:"date"`
	Value     float64        `json:"value"`
	Status    ExternalStatus `json:"status"`
	FileName  string         `json:"fileName"` // proveniência, para auditoria
}

// ConfirmedOverrideMap liga IDs internos a IDs externos confirmados
// manualmente. O chamador é dono do mapa; o motor apenas consulta.
type ConfirmedOverrideMap map[string]string

// ReconciliationResult é o desfecho da conciliação de um registro interno.
// Recalculado por inteiro a cada execução.
type ReconciliationResult struct {
	InternalID     string          `json:"internalId"`
	ExternalID     string          `json:"externalId,omitempty"`
	Status         MatchStatus     `json:"status"`
	Notes          []string        `json:"notes"`
	Record         InternalRecord  `json:"record"`
	MatchCandidate *ExternalRecord `json:"matchCandidate,omitempty"`
}

// StatusSummary agrega valores e contagens por status financeiro.
type StatusSummary struct {
	Paid             float64 `json:"paid"`
	PaidCount        int     `json:"paidCount"`
	Scheduled        float64 `json:"scheduled"`
	ScheduledCount   int     `json:"scheduledCount"`
	Pending          float64 `json:"pending"`
	PendingCount     int     `json:"pendingCount"`
	Anticipated      float64 `json:"anticipated"`
	AnticipatedCount int     `json:"anticipatedCount"`
}

// CategoryCell é uma célula da pivô mensal (quantidade e valor somado).
type CategoryCell struct {
	Qty int     `json:"qty"`
	Val float64 `json:"val"`
}

// MonthlyPivot agrupa os resultados de um mês por categoria.
type MonthlyPivot struct {
	Key    string       `json:"key"` // "YYYY-MM"
	Label  string       `json:"label"`
	Rota   CategoryCell `json:"rota"`
	Puxada CategoryCell `json:"puxada"`
	ISS    CategoryCell `json:"iss"`
	Acerto CategoryCell `json:"acerto"`
}

// DashboardStats é o agregado exibido pela camada de apresentação.
type DashboardStats struct {
	Summary StatusSummary  `json:"summary"`
	Pivot   []MonthlyPivot `json:"pivot"`
}
