package pix

// Provider status values as returned by the instant-payment API.
const (
	ChargeStatusActive         = "ATIVA"
	ChargeStatusCompleted      = "CONCLUIDA"
	ChargeStatusRemovedByPayee = "REMOVIDA_PELO_USUARIO_RECEBEDOR"
	ChargeStatusRemovedByPSP   = "REMOVIDA_PELO_PSP"
	RecurrenceStatusCreated    = "CRIADA"
	RecurrenceStatusApproved   = "APROVADA"
	RecurrenceStatusRejected   = "REJEITADA"
	RecurrenceStatusCancelled  = "CANCELADA"
	RecurrenceStatusExpired    = "EXPIRADA"
)

// Calendar carries the expiry of an immediate charge in seconds.
type Calendar struct {
	CreatedAt string `json:"criacao,omitempty"`
	Expiry    int    `json:"expiracao"`
}

// Amount is the charge value as a decimal string with two places.
type Amount struct {
	Original string `json:"original"`
}

// Payment is one settlement received for a charge.
type Payment struct {
	EndToEndID string `json:"endToEndId"`
	TxID       string `json:"txid"`
	Amount     string `json:"valor"`
	Time       string `json:"horario"`
}

// Charge is an immediate charge (cob).
type Charge struct {
	TxID      string    `json:"txid"`
	Status    string    `json:"status"`
	Calendar  Calendar  `json:"calendario"`
	Amount    Amount    `json:"valor"`
	Key       string    `json:"chave"`
	CopyPaste string    `json:"pixCopiaECola"`
	Location  string    `json:"location,omitempty"`
	Payments  []Payment `json:"pix,omitempty"`
}

// ChargeRequest is the body of PUT /v2/cob/{txid}.
type ChargeRequest struct {
	Calendar    Calendar `json:"calendario"`
	Amount      Amount   `json:"valor"`
	Key         string   `json:"chave"`
	PayerNotice string   `json:"solicitacaoPagador,omitempty"`
}

// Recurrence is an automatic-payment authorization (rec).
type Recurrence struct {
	ID     string `json:"idRec"`
	Status string `json:"status"`
}

// RecurringCharge is one charge issued under a recurrence (cobr).
type RecurringCharge struct {
	TxID         string `json:"txid"`
	RecurrenceID string `json:"idRec"`
	Status       string `json:"status"`
	Amount       Amount `json:"valor"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
