package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenAI extracts contract fields with Google's Gemini API. The model is asked
// for a JSON object only; anything that does not unmarshal is reported as
// ErrMalformedResponse so the caller's retry policy can tighten the prompt.
type GenAI struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAI creates the Gemini-backed adapter.
func NewGenAI(ctx context.Context, apiKey, model string, timeout time.Duration) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("extract: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("extract: create client: %w", err)
	}
	return &GenAI{client: client, model: model, timeout: timeout}, nil
}

// payload mirrors the flat JSON the model is asked to produce.
type payload struct {
	Processo       string `json:"processo"`
	NumeroContrato string `json:"numero_contrato"`
	ValorContrato  string `json:"valor_contrato"`
	DataAssinatura string `json:"data_assinatura"`
	Objeto         string `json:"objeto"`
	Contratante    string `json:"contratante"`
	Contratada     string `json:"contratada"`
	DataInicio     string `json:"data_inicio"`
	DataFim        string `json:"data_fim"`
	Orgao          string `json:"orgao"`
	TipoExtrato    string `json:"tipo_extrato"`
}

// Extract implements Adapter.
func (g *GenAI) Extract(ctx context.Context, text string, strict bool) (*ContractRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(buildPrompt(text, strict)),
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.1),
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		return nil, classify(err)
	}

	raw := strings.TrimSpace(resp.Text())
	raw = stripCodeFence(raw)

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &ContractRecord{
		Processo:       p.Processo,
		NumeroContrato: p.NumeroContrato,
		ValorContrato:  p.ValorContrato,
		DataAssinatura: p.DataAssinatura,
		Objeto:         p.Objeto,
		Partes:         Partes{Contratante: p.Contratante, Contratada: p.Contratada},
		Prazo:          Prazo{DataInicio: p.DataInicio, DataFim: p.DataFim},
		Orgao:          p.Orgao,
		TipoExtrato:    p.TipoExtrato,
	}, nil
}

// maxPromptChars truncates very long documents; the extract block is at the
// start of gazette pages and contract PDFs alike.
const maxPromptChars = 12000

func buildPrompt(text string, strict bool) string {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	var b strings.Builder
	b.WriteString(`Analise o texto abaixo, proveniente de um contrato administrativo ou de um extrato publicado em Diário Oficial.

Extraia os campos do contrato e retorne APENAS um objeto JSON, sem markdown, com exatamente estas chaves:
{
  "processo": "...",
  "numero_contrato": "...",
  "valor_contrato": "R$ ...",
  "data_assinatura": "DD/MM/YYYY",
  "objeto": "...",
  "contratante": "...",
  "contratada": "...",
  "data_inicio": "DD/MM/YYYY",
  "data_fim": "DD/MM/YYYY",
  "orgao": "...",
  "tipo_extrato": "..."
}

Use "" para campos ausentes. Datas sempre no formato DD/MM/YYYY.
`)
	if strict {
		b.WriteString(`
ATENÇÃO: a resposta anterior não era JSON válido. Responda somente com o objeto JSON acima, sem qualquer texto antes ou depois, sem cercas de código, com todas as chaves presentes e valores do tipo string.
`)
	}
	b.WriteString("\nTEXTO:\n")
	b.WriteString(text)
	return b.String()
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// classify maps service errors onto the adapter taxonomy.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
