// Package template renders message templates against a contact and execution
// context. Placeholders use {{token}} syntax, matched case-insensitively;
// unknown tokens are left as literal text so an authoring typo never breaks a
// send.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([\pL\pN_.]+)\s*\}\}`)

// Context carries everything a template may reference: the contact snapshot,
// execution variables and the inbound message that triggered the flow.
type Context struct {
	Contact   *models.Contact
	Variables map[string]any
	Message   string
}

// Render substitutes every recognized placeholder in input, defaulting to an
// empty string when the corresponding context field is absent.
func Render(input string, ctx *Context) string {
	if ctx == nil {
		return input
	}

	return tokenPattern.ReplaceAllStringFunc(input, func(match string) string {
		token := strings.ToLower(strings.Trim(match, "{} \t"))

		if value, ok := ctx.lookup(token); ok {
			return value
		}

		return match
	})
}

func (c *Context) lookup(token string) (string, bool) {
	if value, ok := c.contactField(token); ok {
		return value, true
	}

	for key, value := range c.Variables {
		if strings.EqualFold(key, token) {
			return stringify(value), true
		}
	}

	return "", false
}

func (c *Context) contactField(token string) (string, bool) {
	contact := c.Contact
	if contact == nil {
		contact = &models.Contact{}
	}

	switch token {
	case "nome":
		return contact.Name, true
	case "primeiro_nome":
		return contact.GivenName(), true
	case "sobrenome":
		return contact.FamilyName(), true
	case "telefone":
		return contact.Phone, true
	case "email":
		return contact.Email, true
	case "total_compras":
		return strconv.Itoa(contact.TotalPurchases), true
	case "total_gasto":
		return strconv.FormatFloat(contact.TotalSpent, 'f', 2, 64), true
	case "tags":
		return strings.Join(contact.Tags, ", "), true
	case "primeira_origem":
		return contact.FirstSource, true
	case "primeira_campanha":
		return contact.FirstCampaign, true
	case "mensagem":
		return c.Message, true
	default:
		return "", false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
