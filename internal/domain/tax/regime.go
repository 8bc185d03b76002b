package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// RUSCategory tramo del Nuevo RUS.
type RUSCategory string

const (
	RUSCategoryA RUSCategory = "A"
	RUSCategoryB RUSCategory = "B"
	RUSCategoryC RUSCategory = "C"
	RUSCategoryD RUSCategory = "D"
	RUSCategoryE RUSCategory = "E"
	RUSCategoryF RUSCategory = "F"
	RUSCategoryG RUSCategory = "G"
	RUSCategoryH RUSCategory = "H"
)

// cuota mensual fija por tramo (soles).
var rusFees = map[RUSCategory]int64{
	RUSCategoryA: 20,
	RUSCategoryB: 50,
	RUSCategoryC: 200,
	RUSCategoryD: 400,
	RUSCategoryE: 600,
	RUSCategoryF: 600,
	RUSCategoryG: 600,
	RUSCategoryH: 600,
}

// ParseRUSCategory normaliza la categoría; desconocida o vacía cae en el tramo A.
func ParseRUSCategory(s string) RUSCategory {
	c := RUSCategory(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rusFees[c]; ok {
		return c
	}
	return RUSCategoryA
}

// RUSFee cuota fija del tramo.
func RUSFee(c RUSCategory) decimal.Decimal {
	fee, ok := rusFees[c]
	if !ok {
		fee = rusFees[RUSCategoryA]
	}
	return decimal.NewFromInt(fee)
}

// RGCategory subtipo del Régimen General que define la tasa del pago a cuenta.
type RGCategory string

const (
	RGCategoryGeneral  RGCategory = "general"
	RGCategoryServices RGCategory = "services"
)

// ParseRGCategory reconoce "services"/"servicios"; cualquier otro valor es general.
func ParseRGCategory(s string) RGCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "services", "servicios", "service", "servicio":
		return RGCategoryServices
	default:
		return RGCategoryGeneral
	}
}

// ParseRegimeType valida el tipo de régimen. Un valor desconocido es error de validación.
func ParseRegimeType(s string) (entity.RegimeType, error) {
	switch entity.RegimeType(strings.ToUpper(strings.TrimSpace(s))) {
	case entity.RegimeRUS:
		return entity.RegimeRUS, nil
	case entity.RegimeRER:
		return entity.RegimeRER, nil
	case entity.RegimeRG:
		return entity.RegimeRG, nil
	default:
		return "", fmt.Errorf("%w: régimen desconocido %q", domain.ErrValidation, s)
	}
}

// FormFor formulario con el que se declara el régimen.
func FormFor(r entity.RegimeType) string {
	if r == entity.RegimeRUS {
		return sunat.FormNRUS
	}
	return sunat.FormPDT621
}
