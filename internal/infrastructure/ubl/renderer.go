package ubl

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// Namespaces UBL 2.1 usados por la SUNAT.
const (
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCac     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCbc     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NsExt     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	NsDs      = "http://www.w3.org/2000/09/xmldsig#"
)

// esquema de tributo por afectación (catálogo 05)
type taxScheme struct {
	id, name, typeCode, exemptionCode string
}

var schemes = map[string]taxScheme{
	sunat.AffectationGravado:   {"1000", "IGV", "VAT", "10"},
	sunat.AffectationExonerado: {"9997", "EXO", "VAT", "20"},
	sunat.AffectationInafecto:  {"9998", "INA", "FRE", "30"},
}

var schemeOrder = []string{sunat.AffectationGravado, sunat.AffectationExonerado, sunat.AffectationInafecto}

var _ billing.XMLRenderer = (*Renderer)(nil)

// Renderer genera el XML UBL 2.1 sin firma; el nodo ext:ExtensionContent queda vacío para el firmador.
type Renderer struct {
	Indent int
}

func NewRenderer() *Renderer {
	return &Renderer{Indent: 2}
}

func (r *Renderer) Render(inv *entity.Invoice, issuer *entity.TaxpayerProfile) ([]byte, error) {
	if inv == nil || issuer == nil {
		return nil, fmt.Errorf("ubl: faltan comprobante o emisor")
	}
	currency := inv.Currency
	if currency == "" {
		currency = sunat.CurrencyPEN
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NsInvoice)
	root.CreateAttr("xmlns:cac", NsCac)
	root.CreateAttr("xmlns:cbc", NsCbc)
	root.CreateAttr("xmlns:ext", NsExt)
	root.CreateAttr("xmlns:ds", NsDs)

	root.CreateElement("ext:UBLExtensions").
		CreateElement("ext:UBLExtension").
		CreateElement("ext:ExtensionContent")

	cbc(root, "cbc:UBLVersionID", "2.1")
	cbc(root, "cbc:CustomizationID", "2.0")
	cbc(root, "cbc:ID", inv.FullNumber())
	cbc(root, "cbc:IssueDate", inv.IssueDate.Format("2006-01-02"))
	typeCode := cbc(root, "cbc:InvoiceTypeCode", sunat.DocumentCode(inv.DocumentType))
	typeCode.CreateAttr("listID", "0101") // venta interna
	cbc(root, "cbc:DocumentCurrencyCode", currency)
	cbc(root, "cbc:LineCountNumeric", strconv.Itoa(len(inv.Items)))

	writeParty(root.CreateElement("cac:AccountingSupplierParty"), sunat.IdentityTypeRUC, issuer.RUC, issuer.BusinessName)
	writeParty(root.CreateElement("cac:AccountingCustomerParty"), inv.Client.IdentityType, inv.Client.DocumentNumber, inv.Client.Name)

	// totales por afectación
	base := make(map[string]decimal.Decimal)
	tax := make(map[string]decimal.Decimal)
	for _, it := range inv.Items {
		a := normalizeAffectation(it.Affectation)
		base[a] = base[a].Add(it.Subtotal)
		tax[a] = tax[a].Add(it.IGV)
	}
	taxTotal := root.CreateElement("cac:TaxTotal")
	amount(taxTotal, "cbc:TaxAmount", inv.IGV, currency)
	for _, a := range schemeOrder {
		if _, ok := base[a]; !ok {
			continue
		}
		writeTaxSubtotal(taxTotal, schemes[a], base[a], tax[a], currency, false)
	}

	legal := root.CreateElement("cac:LegalMonetaryTotal")
	amount(legal, "cbc:LineExtensionAmount", inv.Taxable.Add(inv.Exempt), currency)
	amount(legal, "cbc:TaxInclusiveAmount", inv.Total, currency)
	amount(legal, "cbc:PayableAmount", inv.Total, currency)

	for _, it := range inv.Items {
		writeLine(root, it, currency)
	}

	doc.Indent(r.Indent)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("ubl: serializar: %w", err)
	}
	return out, nil
}

func writeParty(parent *etree.Element, schemeID, docNumber, name string) {
	party := parent.CreateElement("cac:Party")
	if docNumber == "" {
		docNumber = "-"
	}
	id := cbc(party.CreateElement("cac:PartyIdentification"), "cbc:ID", docNumber)
	id.CreateAttr("schemeID", schemeID)
	cbc(party.CreateElement("cac:PartyLegalEntity"), "cbc:RegistrationName", name)
}

func writeTaxSubtotal(parent *etree.Element, s taxScheme, base, tax decimal.Decimal, currency string, line bool) {
	sub := parent.CreateElement("cac:TaxSubtotal")
	amount(sub, "cbc:TaxableAmount", base, currency)
	amount(sub, "cbc:TaxAmount", tax, currency)
	cat := sub.CreateElement("cac:TaxCategory")
	if line {
		if s.id == "1000" {
			cbc(cat, "cbc:Percent", strconv.Itoa(sunat.IGVRatePct))
		}
		cbc(cat, "cbc:TaxExemptionReasonCode", s.exemptionCode)
	}
	scheme := cat.CreateElement("cac:TaxScheme")
	cbc(scheme, "cbc:ID", s.id)
	cbc(scheme, "cbc:Name", s.name)
	cbc(scheme, "cbc:TaxTypeCode", s.typeCode)
}

func writeLine(root *etree.Element, it *entity.InvoiceItem, currency string) {
	line := root.CreateElement("cac:InvoiceLine")
	cbc(line, "cbc:ID", strconv.Itoa(it.Line))
	qty := cbc(line, "cbc:InvoicedQuantity", it.Quantity.String())
	qty.CreateAttr("unitCode", "NIU")
	amount(line, "cbc:LineExtensionAmount", it.Subtotal, currency)

	// precio unitario con impuestos (catálogo 16, código 01)
	unitWithTax := it.UnitPrice
	if !it.Quantity.IsZero() {
		unitWithTax = it.Total.DivRound(it.Quantity, 2)
	}
	alt := line.CreateElement("cac:PricingReference").CreateElement("cac:AlternativeConditionPrice")
	amount(alt, "cbc:PriceAmount", unitWithTax, currency)
	cbc(alt, "cbc:PriceTypeCode", "01")

	lineTax := line.CreateElement("cac:TaxTotal")
	amount(lineTax, "cbc:TaxAmount", it.IGV, currency)
	writeTaxSubtotal(lineTax, schemes[normalizeAffectation(it.Affectation)], it.Subtotal, it.IGV, currency, true)

	cbc(line.CreateElement("cac:Item"), "cbc:Description", it.Description)
	amount(line.CreateElement("cac:Price"), "cbc:PriceAmount", it.UnitPrice, currency)
}

func normalizeAffectation(a string) string {
	if _, ok := schemes[a]; ok {
		return a
	}
	return sunat.AffectationGravado
}

func cbc(parent *etree.Element, tag, text string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(text)
	return el
}

func amount(parent *etree.Element, tag string, v decimal.Decimal, currency string) *etree.Element {
	el := cbc(parent, tag, v.StringFixed(2))
	el.CreateAttr("currencyID", currency)
	return el
}
