package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

func testContext() *Context {
	return &Context{
		Contact: &models.Contact{
			ID:             "contact-1",
			Name:           "Maria Silva Santos",
			Phone:          "+5511999990000",
			Email:          "maria@example.com",
			Tags:           []string{"vip", "comprou:ProductA"},
			TotalPurchases: 3,
			TotalSpent:     149.9,
			FirstSource:    "instagram",
			FirstCampaign:  "lancamento-julho",
		},
		Variables: map[string]any{
			"produto":            "ProductA",
			"menu_choice_number": 2,
		},
		Message: "oi",
	}
}

func TestRender_ContactTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"full name", "Olá {{nome}}!", "Olá Maria Silva Santos!"},
		{"first name", "Oi {{primeiro_nome}}", "Oi Maria"},
		{"last name", "{{sobrenome}}", "Silva Santos"},
		{"phone", "{{telefone}}", "+5511999990000"},
		{"email", "{{email}}", "maria@example.com"},
		{"purchases", "{{total_compras}} compras", "3 compras"},
		{"spent", "R$ {{total_gasto}}", "R$ 149.90"},
		{"tags", "{{tags}}", "vip, comprou:ProductA"},
		{"source", "{{primeira_origem}}", "instagram"},
		{"campaign", "{{primeira_campanha}}", "lancamento-julho"},
		{"message", "Você disse: {{mensagem}}", "Você disse: oi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Render(tt.input, testContext()))
		})
	}
}

func TestRender_CaseInsensitiveAndWhitespace(t *testing.T) {
	assert.Equal(t, "Oi Maria", Render("Oi {{ PRIMEIRO_NOME }}", testContext()))
}

func TestRender_ExecutionVariables(t *testing.T) {
	assert.Equal(t, "Produto: ProductA", Render("Produto: {{produto}}", testContext()))
	assert.Equal(t, "Opção 2", Render("Opção {{menu_choice_number}}", testContext()))
}

func TestRender_UnknownTokenLeftLiteral(t *testing.T) {
	assert.Equal(t, "Olá {{desconhecido}}", Render("Olá {{desconhecido}}", testContext()))
}

func TestRender_MissingContactFieldRendersEmpty(t *testing.T) {
	ctx := &Context{Contact: &models.Contact{}}

	assert.Equal(t, "Oi !", Render("Oi {{primeiro_nome}}!", ctx))
}

func TestRender_NilContext(t *testing.T) {
	assert.Equal(t, "Oi {{nome}}", Render("Oi {{nome}}", nil))
}

func TestContactNameDerivation(t *testing.T) {
	contact := &models.Contact{Name: "João Pedro Costa"}

	assert.Equal(t, "João", contact.GivenName())
	assert.Equal(t, "Pedro Costa", contact.FamilyName())

	explicit := &models.Contact{Name: "João Pedro", FirstName: "JP", LastName: "Costa"}

	assert.Equal(t, "JP", explicit.GivenName())
	assert.Equal(t, "Costa", explicit.FamilyName())

	single := &models.Contact{Name: "Madonna"}

	assert.Equal(t, "Madonna", single.GivenName())
	assert.Empty(t, single.FamilyName())
}
