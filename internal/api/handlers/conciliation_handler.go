package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"conciliation-service/internal/api/responses"
	"conciliation-service/internal/core/conciliation"
	"conciliation-service/internal/core/report"
	"conciliation-service/internal/domain"
	"conciliation-service/internal/insight"

	"github.com/gin-gonic/gin"
)

// ConciliationHandler lida com as requisições da API de conciliação. Guarda o
// estado da sessão (registros, vínculos confirmados, configuração) que na
// versão original vivia na interface; o motor em si é puro e não conhece
// este estado.
type ConciliationHandler struct {
	service conciliation.Service
	explain insight.Explainer

	mu        sync.RWMutex
	config    domain.CteConfig
	internal  []domain.InternalRecord
	external  []domain.ExternalRecord
	confirmed domain.ConfirmedOverrideMap
}

// NewConciliationHandler cria um novo handler de conciliação.
func NewConciliationHandler(service conciliation.Service, explain insight.Explainer) *ConciliationHandler {
	if explain == nil {
		explain = insight.Noop()
	}
	return &ConciliationHandler{
		service:   service,
		explain:   explain,
		config:    domain.DefaultConfig(),
		confirmed: domain.ConfirmedOverrideMap{},
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func validExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xls", ".xlsx":
		return true
	}
	return false
}

// HandleInternalUpload ingere uma planilha operacional (ROTA ou PUXADA).
func (h *ConciliationHandler) HandleInternalUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Arquivo (.csv, .xls, .xlsx) não encontrado ou inválido")
		return
	}
	if !validExt(fileHeader.Filename) {
		responses.Error(c, http.StatusBadRequest, fmt.Sprintf("Extensão de arquivo não suportada: %s", filepath.Ext(fileHeader.Filename)))
		return
	}

	source := domain.InternalSource(strings.ToUpper(c.PostForm("source")))
	if source != domain.SourceRota && source != domain.SourcePuxada {
		responses.Error(c, http.StatusBadRequest, "Parâmetro 'source' deve ser ROTA ou PUXADA")
		return
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível ler o arquivo enviado")
		return
	}

	h.mu.Lock()
	cfg := h.config
	h.mu.Unlock()

	records, err := h.service.IngestInternal(data, fileHeader.Filename, cfg, source)
	if err != nil {
		responses.Error(c, http.StatusUnprocessableEntity, "Erro ao processar o arquivo", err.Error())
		return
	}

	h.mu.Lock()
	h.internal = append(h.internal, records...)
	total := len(h.internal)
	h.mu.Unlock()

	responses.Success(c, gin.H{"imported": len(records), "totalInternal": total},
		fmt.Sprintf("%d registros de %s carregados", len(records), source))
}

// HandleExternalUpload ingere um ou mais exports financeiros com o mesmo
// status (PAGO, A PAGAR ou ADIANTADO). Falha num arquivo descarta só a
// contribuição dele.
func (h *ConciliationHandler) HandleExternalUpload(c *gin.Context) {
	status := domain.ExternalStatus(strings.ToUpper(strings.TrimSpace(c.PostForm("status"))))
	switch status {
	case domain.ExternalPago, domain.ExternalAPagar, domain.ExternalAdiantado:
	default:
		responses.Error(c, http.StatusBadRequest, "Parâmetro 'status' deve ser PAGO, A PAGAR ou ADIANTADO")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Formulário multipart inválido")
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		if fh, err := c.FormFile("file"); err == nil {
			fileHeaders = []*multipart.FileHeader{fh}
		}
	}
	if len(fileHeaders) == 0 {
		responses.Error(c, http.StatusBadRequest, "Nenhum arquivo enviado")
		return
	}

	var batch []conciliation.ExternalFile
	for _, fh := range fileHeaders {
		if !validExt(fh.Filename) {
			responses.Error(c, http.StatusBadRequest, fmt.Sprintf("Extensão de arquivo não suportada: %s", filepath.Ext(fh.Filename)))
			return
		}
		data, err := readUpload(fh)
		if err != nil {
			responses.Error(c, http.StatusInternalServerError, fmt.Sprintf("Não foi possível ler o arquivo %s", fh.Filename))
			return
		}
		batch = append(batch, conciliation.ExternalFile{Data: data, FileName: fh.Filename, Status: status})
	}

	records := h.service.IngestExternal(batch)

	h.mu.Lock()
	h.external = append(h.external, records...)
	total := len(h.external)
	h.mu.Unlock()

	responses.Success(c, gin.H{"imported": len(records), "totalExternal": total},
		fmt.Sprintf("%d títulos (%s) adicionados ao banco", len(records), status))
}

func (h *ConciliationHandler) snapshot() ([]domain.InternalRecord, []domain.ExternalRecord, domain.ConfirmedOverrideMap) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	overrides := make(domain.ConfirmedOverrideMap, len(h.confirmed))
	for k, v := range h.confirmed {
		overrides[k] = v
	}
	return h.internal, h.external, overrides
}

// HandleResults devolve os resultados da conciliação e o agregado do painel.
func (h *ConciliationHandler) HandleResults(c *gin.Context) {
	internal, external, overrides := h.snapshot()

	results := h.service.Reconcile(internal, external, overrides)
	stats := h.service.Summarize(results)

	responses.Success(c, gin.H{"results": results, "stats": stats}, "")
}

type confirmRequest struct {
	InternalID string `json:"internalId" binding:"required"`
	ExternalID string `json:"externalId" binding:"required"`
}

// HandleConfirmMatch grava um vínculo manual interno→externo. O vínculo tem
// precedência sobre qualquer regra automática nas próximas conciliações.
func (h *ConciliationHandler) HandleConfirmMatch(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, http.StatusBadRequest, "Corpo inválido: internalId e externalId são obrigatórios")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	found := false
	for i := range h.internal {
		if h.internal[i].ID == req.InternalID {
			found = true
			break
		}
	}
	if !found {
		responses.Error(c, http.StatusNotFound, "Registro interno não encontrado")
		return
	}
	found = false
	for i := range h.external {
		if h.external[i].ID == req.ExternalID {
			found = true
			break
		}
	}
	if !found {
		responses.Error(c, http.StatusNotFound, "Título externo não encontrado")
		return
	}

	h.confirmed[req.InternalID] = req.ExternalID
	responses.Success(c, nil, "Vínculo confirmado")
}

// HandleGetConfig devolve a configuração de categorização vigente.
func (h *ConciliationHandler) HandleGetConfig(c *gin.Context) {
	h.mu.RLock()
	cfg := h.config
	h.mu.RUnlock()
	responses.Success(c, cfg, "")
}

// HandleUpdateConfig substitui a configuração de categorização.
func (h *ConciliationHandler) HandleUpdateConfig(c *gin.Context) {
	var cfg domain.CteConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		responses.Error(c, http.StatusBadRequest, "Configuração inválida", err.Error())
		return
	}
	if cfg.RotaValue <= 0 || cfg.PuxadaMaxThreshold <= 0 {
		responses.Error(c, http.StatusBadRequest, "Valores de configuração devem ser positivos")
		return
	}

	h.mu.Lock()
	h.config = cfg
	h.mu.Unlock()
	responses.Success(c, cfg, "Configuração atualizada")
}

// HandleClear apaga todos os registros importados e vínculos manuais.
func (h *ConciliationHandler) HandleClear(c *gin.Context) {
	h.mu.Lock()
	h.internal = nil
	h.external = nil
	h.confirmed = domain.ConfirmedOverrideMap{}
	h.mu.Unlock()
	responses.Success(c, nil, "Dados removidos")
}

// HandleReport gera e devolve o relatório XLSX da conciliação corrente.
func (h *ConciliationHandler) HandleReport(c *gin.Context) {
	internal, external, overrides := h.snapshot()
	if len(internal) == 0 {
		responses.Error(c, http.StatusBadRequest, "Não há dados para exportar")
		return
	}

	results := h.service.Reconcile(internal, external, overrides)
	output, err := report.Build(results)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Erro ao gerar relatório", err.Error())
		return
	}

	fileName := fmt.Sprintf("Conciliacao_Facilita_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", output)
}

// HandleExplain pede ao serviço de texto uma explicação para a divergência de
// um registro interno. Só faz sentido para DISCREPANCY e MANUAL_REVIEW.
func (h *ConciliationHandler) HandleExplain(c *gin.Context) {
	internalID := c.Param("internalId")

	internal, external, overrides := h.snapshot()
	results := h.service.Reconcile(internal, external, overrides)

	for _, r := range results {
		if r.InternalID != internalID {
			continue
		}
		if r.Status != domain.StatusDiscrepancy && r.Status != domain.StatusManualReview {
			responses.Error(c, http.StatusBadRequest, "Registro não tem divergência a explicar")
			return
		}

		summary := insight.DiscrepancySummary{
			InternalCte:   r.Record.OriginalCte,
			InternalValue: r.Record.Value,
			InternalDate:  r.Record.Date,
			Notes:         r.Notes,
		}
		if r.MatchCandidate != nil {
			summary.CandidateRefs = []string{r.MatchCandidate.RefNumber}
		}

		text, err := h.explain(c.Request.Context(), summary)
		if err != nil {
			responses.Error(c, http.StatusBadGateway, "Serviço de análise indisponível", err.Error())
			return
		}
		responses.Success(c, gin.H{"explanation": text}, "")
		return
	}

	responses.Error(c, http.StatusNotFound, "Registro interno não encontrado")
}
