// cmd/conciliation/main.go
package main

import (
	"log"
	"os"

	"conciliation-service/internal/api/handlers"
	"conciliation-service/internal/api/responses"
	"conciliation-service/internal/core/conciliation"
	"conciliation-service/internal/insight"

	"github.com/gin-gonic/gin"
)

func main() {
	logger := responses.InitLogger()

	explainer := insight.Noop()
	if endpoint := os.Getenv("INSIGHT_SERVICE_URL"); endpoint != "" {
		explainer = insight.NewHTTPExplainer(endpoint, nil)
	}

	conciliationService := conciliation.NewService(logger)
	conciliationHandler := handlers.NewConciliationHandler(conciliationService, explainer)

	router := gin.Default()

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/conciliation/internal", conciliationHandler.HandleInternalUpload)
		apiV1.POST("/conciliation/external", conciliationHandler.HandleExternalUpload)
		apiV1.GET("/conciliation/results", conciliationHandler.HandleResults)
		apiV1.POST("/conciliation/confirm", conciliationHandler.HandleConfirmMatch)
		apiV1.GET("/conciliation/config", conciliationHandler.HandleGetConfig)
		apiV1.PUT("/conciliation/config", conciliationHandler.HandleUpdateConfig)
		apiV1.DELETE("/conciliation/records", conciliationHandler.HandleClear)
		apiV1.GET("/conciliation/report", conciliationHandler.HandleReport)
		apiV1.GET("/conciliation/explain/:internalId", conciliationHandler.HandleExplain)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "conciliation-service"})
	})

	const port = "8084"
	log.Printf("🚀 Conciliation Service (Go) iniciado e escutando na porta %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Falha ao iniciar o servidor de conciliação: ", err)
	}
}
