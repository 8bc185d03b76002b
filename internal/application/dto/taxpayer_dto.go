package dto

import "time"

// UpsertTaxpayerRequest body para PUT /api/taxpayer.
// Las credenciales SUNAT van todas juntas o ninguna; si se omiten se conservan las guardadas.
type UpsertTaxpayerRequest struct {
	RUC          string    `json:"ruc" validate:"required,len=11,numeric"`
	BusinessName string    `json:"business_name" validate:"required,max=200"`
	Regime       RegimeDTO `json:"regime"`
	SolUser      string    `json:"sol_user,omitempty" validate:"required_with=SolPassword ClientID ClientSecret,max=20"`
	SolPassword  string    `json:"sol_password,omitempty" validate:"required_with=SolUser ClientID ClientSecret,max=100"`
	ClientID     string    `json:"client_id,omitempty" validate:"required_with=SolUser SolPassword ClientSecret,max=100"`
	ClientSecret string    `json:"client_secret,omitempty" validate:"required_with=SolUser SolPassword ClientID,max=200"`
}

// TaxpayerResponse perfil sin secretos.
type TaxpayerResponse struct {
	RUC            string    `json:"ruc"`
	BusinessName   string    `json:"business_name"`
	Regime         RegimeDTO `json:"regime"`
	SolUser        string    `json:"sol_user,omitempty"`
	ClientID       string    `json:"client_id,omitempty"`
	HasCredentials bool      `json:"has_credentials"`
	UpdatedAt      time.Time `json:"updated_at"`
}
