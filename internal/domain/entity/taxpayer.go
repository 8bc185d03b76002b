package entity

import "time"

// TaxpayerProfile datos tributarios del usuario y sus credenciales SUNAT cifradas.
type TaxpayerProfile struct {
	OwnerID         string
	RUC             string
	BusinessName    string
	Regime          Regime
	SolUser         string
	SolPasswordEnc  []byte
	ClientID        string
	ClientSecretEnc []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasCredentials indica si el perfil tiene credenciales SUNAT configuradas.
func (p *TaxpayerProfile) HasCredentials() bool {
	return p.SolUser != "" && len(p.SolPasswordEnc) > 0 && p.ClientID != "" && len(p.ClientSecretEnc) > 0
}

// SunatCredentials credenciales en claro; solo viven en memoria durante una llamada.
type SunatCredentials struct {
	OwnerID      string
	RUC          string
	SolUser      string
	SolPassword  string
	ClientID     string
	ClientSecret string
}
