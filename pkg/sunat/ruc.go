package sunat

import (
	"fmt"
	"unicode"
)

// pesos del dígito verificador del RUC (módulo 11), aplicados a los 10 primeros dígitos.
var rucWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// prefijos válidos: 10 persona natural, 15/16/17 casos especiales, 20 persona jurídica.
var validRUCPrefixes = map[string]bool{"10": true, "15": true, "16": true, "17": true, "20": true}

// ValidateRUC valida que el RUC tenga 11 dígitos, un prefijo reconocido y
// un dígito verificador correcto.
func ValidateRUC(ruc string) error {
	if len(ruc) != 11 {
		return fmt.Errorf("sunat: el RUC debe tener 11 dígitos, se recibieron %d caracteres", len(ruc))
	}
	for _, r := range ruc {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("sunat: el RUC solo admite dígitos")
		}
	}
	if !validRUCPrefixes[ruc[:2]] {
		return fmt.Errorf("sunat: prefijo de RUC %q no reconocido", ruc[:2])
	}
	expected, err := ComputeRUCCheckDigit(ruc[:10])
	if err != nil {
		return err
	}
	if ruc[10] != expected {
		return fmt.Errorf("sunat: dígito verificador del RUC inválido: esperado %c, recibido %c", expected, ruc[10])
	}
	return nil
}

// ComputeRUCCheckDigit calcula el dígito verificador para los 10 primeros dígitos del RUC.
func ComputeRUCCheckDigit(base string) (byte, error) {
	if len(base) < 10 {
		return 0, fmt.Errorf("sunat: se requieren 10 dígitos para calcular el dígito verificador, se recibieron %d", len(base))
	}
	var sum int
	for i := 0; i < 10; i++ {
		c := base[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("sunat: el RUC solo admite dígitos")
		}
		sum += int(c-'0') * rucWeights[i]
	}
	d := 11 - sum%11
	switch d {
	case 10:
		d = 0
	case 11:
		d = 1
	}
	return byte('0' + d), nil
}

// ValidateDNI valida un DNI peruano (8 dígitos).
func ValidateDNI(dni string) error {
	if len(dni) != 8 {
		return fmt.Errorf("sunat: el DNI debe tener 8 dígitos")
	}
	for _, r := range dni {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("sunat: el DNI solo admite dígitos")
		}
	}
	return nil
}
