package conciliation

import (
	"math"
	"strings"

	"conciliation-service/internal/domain"
)

// Tolerância, em unidades de moeda, para casar um valor com os valores de
// referência da configuração.
const categoryTolerance = 1.0

// Categorize classifica um CT-e. Um tipo explícito contendo o nome de uma
// categoria vence qualquer regra de valor; sem ele, o valor decide contra a
// configuração do chamador. Pela ordem das regras de valor, ISS só é
// alcançável pelo caminho do tipo explícito; a regra é herdada da origem e
// mantida como está.
func Categorize(value float64, cfg domain.CteConfig, explicitType string) domain.CteCategory {
	if explicitType != "" {
		t := strings.ToUpper(explicitType)
		switch {
		case strings.Contains(t, "ROTA"):
			return domain.CategoryRota
		case strings.Contains(t, "PUXADA"):
			return domain.CategoryPuxada
		case strings.Contains(t, "ISS"):
			return domain.CategoryISS
		case strings.Contains(t, "ACERTO"):
			return domain.CategoryAcerto
		}
	}

	if math.Abs(value-cfg.RotaValue) < categoryTolerance {
		return domain.CategoryRota
	}
	for _, p := range cfg.PuxadaValues {
		if math.Abs(value-p) < categoryTolerance {
			return domain.CategoryPuxada
		}
	}

	if value <= cfg.PuxadaMaxThreshold {
		return domain.CategoryPuxada
	}
	if value > cfg.PuxadaMaxThreshold {
		return domain.CategoryAcerto
	}

	return domain.CategoryISS
}
