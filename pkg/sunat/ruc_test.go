package sunat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// 2010012345 → suma ponderada 63, 63 % 11 = 8, 11 - 8 = 3.
const rucValido = "20100123453"

func TestValidateRUC_Valido(t *testing.T) {
	require.NoError(t, sunat.ValidateRUC(rucValido))
}

func TestValidateRUC_DigitoVerificadorIncorrecto(t *testing.T) {
	err := sunat.ValidateRUC("20100123450")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dígito verificador")
}

func TestValidateRUC_LongitudYFormato(t *testing.T) {
	assert.Error(t, sunat.ValidateRUC("2010012345"), "10 dígitos debe fallar")
	assert.Error(t, sunat.ValidateRUC("2010012345A"), "letras no permitidas")
	assert.Error(t, sunat.ValidateRUC("30100123453"), "prefijo 30 no existe")
}

func TestComputeRUCCheckDigit_CasosBorde(t *testing.T) {
	d, err := sunat.ComputeRUCCheckDigit("2010012345")
	require.NoError(t, err)
	assert.Equal(t, byte('3'), d)

	_, err = sunat.ComputeRUCCheckDigit("123")
	assert.Error(t, err)
}

func TestSeriesFor(t *testing.T) {
	s, err := sunat.SeriesFor(sunat.DocumentTypeFactura)
	require.NoError(t, err)
	assert.Equal(t, "F001", s)

	s, err = sunat.SeriesFor(sunat.DocumentTypeBoleta)
	require.NoError(t, err)
	assert.Equal(t, "B001", s)

	_, err = sunat.SeriesFor("nota")
	assert.Error(t, err)
}

func TestFormatNumberYPeriodKey(t *testing.T) {
	assert.Equal(t, "00000001", sunat.FormatNumber(1))
	assert.Equal(t, "00012345", sunat.FormatNumber(12345))
	assert.Equal(t, "202406", sunat.PeriodKey(2024, 6))
}

func TestValidateDNI(t *testing.T) {
	assert.NoError(t, sunat.ValidateDNI("45678912"))
	assert.Error(t, sunat.ValidateDNI("4567891"))
	assert.Error(t, sunat.ValidateDNI("4567891X"))
}
