package extract

// Partes identifies the two contracting parties.
type Partes struct {
	Contratante string `json:"contratante"`
	Contratada  string `json:"contratada"`
}

// Prazo is the contract validity window.
type Prazo struct {
	DataInicio string `json:"data_inicio"`
	DataFim    string `json:"data_fim"`
}

// ContractRecord is the structured output of field extraction, for a signed
// contract or for a gazette publication excerpt. Immutable once created;
// the pipeline passes it by value and never writes back into it.
type ContractRecord struct {
	Processo       string `json:"processo"`
	NumeroContrato string `json:"numero_contrato"`
	ValorContrato  string `json:"valor_contrato"`
	DataAssinatura string `json:"data_assinatura"`
	Objeto         string `json:"objeto"`
	Partes         Partes `json:"partes"`
	Prazo          Prazo  `json:"prazo"`

	// Gazette-only context, empty for signed contracts.
	Orgao       string `json:"orgao,omitempty"`
	TipoExtrato string `json:"tipo_extrato,omitempty"`
}
