package fields

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			"strips tags and entities",
			"<p>Impressora &amp; scanner</p>",
			"Impressora & scanner",
		},
		{
			"block closers become newlines",
			"<div>linha um</div><div>linha dois</div>",
			"linha um\nlinha dois",
		},
		{
			"br variants become newlines",
			"um<br>dois<br/>três<BR />quatro",
			"um\ndois\ntrês\nquatro",
		},
		{
			"nbsp and space runs collapse",
			"um  dois   três",
			"um dois três",
		},
		{
			"newline runs collapse",
			"um\n\n\n\ndois",
			"um\ndois",
		},
		{"plain text unchanged", "sem html aqui", "sem html aqui"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, CleanHTML(tt.input))
		})
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"simple label", "RAMAL: 4321", "4321"},
		{"double colon", "RAMAL :: 4321", "4321"},
		{"lowercase", "ramal 1234", "1234"},
		{"inside html", "<p>LOCALIZAÇÃO: Bloco A</p><p>RAMAL: 7777</p>", "7777"},
		{"absent", "sem telefone aqui", ""},
		{"label without number", "RAMAL:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ExtractPhone(tt.input))
		})
	}
}

const structuredDescription = `<p>Dados do formulário</p>
<p>LOCALIZAÇÃO : Bloco B - Sala 12</p>
<p>RAMAL : 4455</p>
<p>DESCRIÇÃO DO PEDIDO : Computador não liga<br>desde ontem</p>
<p>ARQUIVO : foto.jpg</p>`

func TestFormatDescription(t *testing.T) {
	t.Run("structured form is reduced to labelled lines", func(t *testing.T) {
		got := FormatDescription(structuredDescription)
		assert.Equal(t,
			"LOCALIZAÇÃO: Bloco B - Sala 12\n"+
				"RAMAL: 4455\n"+
				"DESCRIÇÃO DO PEDIDO: Computador não liga desde ontem\n"+
				"ARQUIVO: foto.jpg",
			got)
	})

	t.Run("free text under the limit passes through cleaned", func(t *testing.T) {
		got := FormatDescription("<p>Mouse quebrado na recepção</p>")
		assert.Equal(t, "Mouse quebrado na recepção", got)
	})

	t.Run("free text over the limit is truncated with ellipsis", func(t *testing.T) {
		long := strings.Repeat("a", 600)
		got := FormatDescription(long)
		assert.Len(t, []rune(got), 500)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("idempotent on structured output", func(t *testing.T) {
		once := FormatDescription(structuredDescription)
		twice := FormatDescription(once)
		assert.Equal(t, once, twice)
	})

	t.Run("idempotent on truncated output", func(t *testing.T) {
		once := FormatDescription(strings.Repeat("b", 600))
		twice := FormatDescription(once)
		assert.Equal(t, once, twice)
	})

	t.Run("idempotent on plain text", func(t *testing.T) {
		once := FormatDescription("chamado comum")
		assert.Equal(t, once, FormatDescription(once))
	})

	t.Run("structured without extractable fields keeps cleaned text", func(t *testing.T) {
		got := FormatDescription("<p>Dados do formulário</p><p>texto livre</p>")
		assert.Equal(t, "Dados do formulário\ntexto livre", got)
	})
}
