package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		want     string
		envelope Envelope
	}{
		{"empty", "", EmptyResponseText, Unrecognized},
		{"whitespace", "  \n\t", EmptyResponseText, Unrecognized},
		{"plain text", "Olá, tudo bem?", "Olá, tudo bem?", Unrecognized},
		{"plain text with braces", "{not json", "{not json", Unrecognized},
		{"response field", `{"response":"oi"}`, "oi", ResponseField},
		{"response wins over others", `{"message":"m","output":{"Resumo":"R"},"response":"X"}`, "X", ResponseField},
		{"empty response falls through", `{"response":"","message":"m"}`, "m", MessageField},
		{"non string response falls through", `{"response":42,"message":"m"}`, "m", MessageField},
		{"resumo wins over descricao", `{"output":{"Resumo":"R","Descricao":"D"}}`, "R", OutputEnvelope},
		{"descricao", `{"output":{"Descricao":"D","Valor":"V"}}`, "D", OutputEnvelope},
		{"labeled lines", `{"output":{"Valor":"V","Categoria":"C"}}`, "**Porção:** V\n\n**Categoria:** C", OutputEnvelope},
		{"labeled lines keep fixed order", `{"output":{"Categoria":"C","Valor":"V"}}`, "**Porção:** V\n\n**Categoria:** C", OutputEnvelope},
		{"numeric valor", `{"output":{"Valor":12.5}}`, "**Porção:** 12.5", OutputEnvelope},
		{"empty fields omitted", `{"output":{"Valor":"","Categoria":"C"}}`, "**Categoria:** C", OutputEnvelope},
		{"output without known fields", `{"output":{"x":1}}`, "{\n  \"x\": 1\n}", OutputEnvelope},
		{"output wins over message", `{"output":{"Resumo":"R"},"message":"m"}`, "R", OutputEnvelope},
		{"message field", `{"message":"m"}`, "m", MessageField},
		{"unrecognized object", `{"a":"b"}`, "{\n  \"a\": \"b\"\n}", Unrecognized},
		{"json scalar", `42`, "42", Unrecognized},
		{"json string", `"hi"`, `"hi"`, Unrecognized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, envelope := Classify(tc.body)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.envelope, envelope)
			assert.Equal(t, tc.want, Normalize(tc.body))
		})
	}
}

func TestNormalizePlainTextUnchanged(t *testing.T) {
	for _, body := range []string{"ok", "  padded  ", "linha 1\nlinha 2", "<html>erro</html>"} {
		assert.Equal(t, body, Normalize(body))
	}
}

func TestEnvelopeString(t *testing.T) {
	assert.Equal(t, "response", ResponseField.String())
	assert.Equal(t, "output", OutputEnvelope.String())
	assert.Equal(t, "message", MessageField.String())
	assert.Equal(t, "unrecognized", Unrecognized.String())
}
