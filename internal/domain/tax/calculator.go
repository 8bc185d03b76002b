// Package tax calcula las obligaciones mensuales de una declaración según el régimen.
// Es una capa pura: sin I/O y determinista.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

var (
	// IGVRate tasa del IGV (18%).
	IGVRate = decimal.RequireFromString("0.18")
	// RERRentRate tasa de renta del RER (1.5% de los ingresos netos).
	RERRentRate = decimal.RequireFromString("0.015")
	// RGServicesRentRate pago a cuenta del RG para servicios.
	RGServicesRentRate = decimal.RequireFromString("0.015")
	// RGGeneralRentRate pago a cuenta del RG para el resto de actividades.
	RGGeneralRentRate = decimal.RequireFromString("0.03")
)

const moneyScale = 2

// Input datos de entrada del cálculo.
type Input struct {
	Regime       entity.Regime
	Sales        entity.Sales
	Purchases    entity.Purchases
	RentWithheld decimal.Decimal
}

// Compute calcula el bloque de impuestos. Un régimen desconocido devuelve ErrValidation.
func Compute(in Input) (entity.TaxBlock, error) {
	if err := validateAmounts(in); err != nil {
		return entity.TaxBlock{}, err
	}
	switch in.Regime.Type {
	case entity.RegimeRUS:
		return computeRUS(in), nil
	case entity.RegimeRER:
		return computeRER(in), nil
	case entity.RegimeRG:
		return computeRG(in), nil
	default:
		return entity.TaxBlock{}, fmt.Errorf("%w: régimen desconocido %q", domain.ErrValidation, in.Regime.Type)
	}
}

func computeRUS(in Input) entity.TaxBlock {
	fee := RUSFee(ParseRUSCategory(in.Regime.Category))
	return entity.TaxBlock{
		IGV:          zeroIGV(),
		Rent:         zeroRent(),
		FixedPayment: fee.Round(moneyScale),
		TotalToPay:   fee.Round(moneyScale),
	}
}

func computeRER(in Input) entity.TaxBlock {
	rent := rentBlock(in.Sales.Total, RERRentRate, in.RentWithheld)
	return entity.TaxBlock{
		IGV:          zeroIGV(),
		Rent:         rent,
		FixedPayment: decimal.Zero,
		TotalToPay:   rent.Balance,
	}
}

func computeRG(in Input) entity.TaxBlock {
	collected := in.Sales.Taxable.Mul(IGVRate).Round(moneyScale)
	paid := in.Purchases.IGVPaid.Round(moneyScale)
	igv := entity.IGVBlock{
		Collected: collected,
		Paid:      paid,
		Balance:   collected.Sub(paid), // sin piso en cero: negativo es saldo a favor
	}

	rate := RGGeneralRentRate
	if ParseRGCategory(in.Regime.Category) == RGCategoryServices {
		rate = RGServicesRentRate
	}
	rent := rentBlock(in.Sales.Total, rate, in.RentWithheld)

	return entity.TaxBlock{
		IGV:          igv,
		Rent:         rent,
		FixedPayment: decimal.Zero,
		TotalToPay:   igv.Balance.Add(rent.Balance),
	}
}

func rentBlock(base, rate, withheld decimal.Decimal) entity.RentBlock {
	amount := base.Mul(rate).Round(moneyScale)
	w := withheld.Round(moneyScale)
	return entity.RentBlock{
		Base:     base.Round(moneyScale),
		Rate:     rate,
		Amount:   amount,
		Withheld: w,
		Balance:  amount.Sub(w),
	}
}

func zeroIGV() entity.IGVBlock {
	return entity.IGVBlock{Collected: decimal.Zero, Paid: decimal.Zero, Balance: decimal.Zero}
}

func zeroRent() entity.RentBlock {
	return entity.RentBlock{Base: decimal.Zero, Rate: decimal.Zero, Amount: decimal.Zero, Withheld: decimal.Zero, Balance: decimal.Zero}
}

func validateAmounts(in Input) error {
	fields := []struct {
		name string
		v    decimal.Decimal
	}{
		{"sales.taxable", in.Sales.Taxable},
		{"sales.exempt", in.Sales.Exempt},
		{"sales.total", in.Sales.Total},
		{"purchases.taxable", in.Purchases.Taxable},
		{"purchases.exempt", in.Purchases.Exempt},
		{"purchases.total", in.Purchases.Total},
		{"purchases.igvPaid", in.Purchases.IGVPaid},
		{"rent.withheld", in.RentWithheld},
	}
	for _, f := range fields {
		if f.v.IsNegative() {
			return fmt.Errorf("%w: %s no puede ser negativo", domain.ErrValidation, f.name)
		}
	}
	return nil
}

// PaymentDue monto a pagar: el total calculado sin bajar de cero.
func PaymentDue(t entity.TaxBlock) decimal.Decimal {
	if t.TotalToPay.IsNegative() {
		return decimal.Zero
	}
	return t.TotalToPay
}
