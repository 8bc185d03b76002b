// Package sunat contiene catálogos y validaciones de la SUNAT (Perú) usados por
// la emisión de comprobantes y la presentación de declaraciones.
package sunat

import "fmt"

// =============================================================================
// Catálogo 01 - Tipo de documento
// =============================================================================

const (
	DocumentTypeFactura = "factura"
	DocumentTypeBoleta  = "boleta"

	DocumentCodeFactura = "01"
	DocumentCodeBoleta  = "03"
)

// series fijas por tipo de comprobante.
const (
	SeriesFactura = "F001"
	SeriesBoleta  = "B001"
)

// SeriesFor devuelve la serie asignada al tipo de comprobante.
func SeriesFor(documentType string) (string, error) {
	switch documentType {
	case DocumentTypeFactura:
		return SeriesFactura, nil
	case DocumentTypeBoleta:
		return SeriesBoleta, nil
	default:
		return "", fmt.Errorf("sunat: tipo de comprobante desconocido %q", documentType)
	}
}

// DocumentCode devuelve el código del catálogo 01 para el tipo de comprobante.
func DocumentCode(documentType string) string {
	if documentType == DocumentTypeBoleta {
		return DocumentCodeBoleta
	}
	return DocumentCodeFactura
}

// NumberWidth ancho del correlativo (relleno con ceros).
const NumberWidth = 8

// FormatNumber formatea el correlativo con relleno de ceros ("00000001").
func FormatNumber(n int64) string {
	return fmt.Sprintf("%0*d", NumberWidth, n)
}

// =============================================================================
// Catálogo 06 - Tipo de documento de identidad
// =============================================================================

const (
	IdentityTypeNone = "0"
	IdentityTypeDNI  = "1"
	IdentityTypeRUC  = "6"
)

// =============================================================================
// Catálogo 07 - Tipo de afectación del IGV
// =============================================================================

const (
	AffectationGravado   = "gravado"   // 10
	AffectationExonerado = "exonerado" // 20
	AffectationInafecto  = "inafecto"  // 30
)

// AffectationCode código del catálogo 07.
func AffectationCode(a string) string {
	switch a {
	case AffectationExonerado:
		return "20"
	case AffectationInafecto:
		return "30"
	default:
		return "10"
	}
}

// =============================================================================
// Formularios y moneda
// =============================================================================

const (
	FormPDT621    = "PDT621" // IGV - Renta mensual (RER y RG)
	FormNRUS      = "NRUS"   // pago mensual del Nuevo RUS
	CurrencyPEN   = "PEN"
	IGVRatePct    = 18
	DueDayOfMonth = 12
)

// PeriodKey arma la clave de período tributario "AAAAMM" usada por el SIRE.
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d%02d", year, month)
}
