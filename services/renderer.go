package services

import (
	"fmt"
	"regexp"
	"strings"

	"sakanly/models"
)

// Template variables a message template may reference. Validation happens at
// save time; rendering trusts whatever passed validation.
var allowedTemplateVariables = map[string]bool{
	"leadFullName":   true,
	"leadFirstName":  true,
	"leadPhone":      true,
	"leadEmail":      true,
	"leadWilaya":     true,
	"leadCommune":    true,
	"agentName":      true,
	"companyName":    true,
	"leadBudgetMin":  true,
	"leadBudgetMax":  true,
	"leadWantedType": true,
}

var (
	variablePattern   = regexp.MustCompile(`\{\{(\w+)\}\}`)
	whitespacePattern = regexp.MustCompile(`\s{2,}`)
)

// ExtractVariables returns the {{name}} placeholders found in text, in
// first-occurrence order, deduplicated.
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// ValidateVariables checks every placeholder in subject and body against the
// allow-list. The first unknown name fails with ErrTemplateUnknownVariable.
func ValidateVariables(body string, subject *string) error {
	combined := body
	if subject != nil {
		combined = *subject + " " + body
	}
	for _, name := range ExtractVariables(combined) {
		if !allowedTemplateVariables[name] {
			return fmt.Errorf("%w: %s", ErrTemplateUnknownVariable, name)
		}
	}
	return nil
}

// BuildContext derives every allow-listed variable from the lead, its
// organization and the owning agent. Absent optional values render as "".
func BuildContext(lead *models.Lead, org *models.Organization, owner *models.User) map[string]string {
	ctx := map[string]string{
		"leadFullName":   lead.FullName,
		"leadFirstName":  firstName(lead.FullName),
		"leadPhone":      lead.Phone,
		"leadEmail":      lead.Email,
		"leadWilaya":     lead.Wilaya,
		"leadCommune":    lead.Commune,
		"leadWantedType": lead.PropertyType,
		"companyName":    "",
		"agentName":      "",
		"leadBudgetMin":  "",
		"leadBudgetMax":  "",
	}
	if org != nil {
		ctx["companyName"] = org.Name
	}
	if owner != nil {
		ctx["agentName"] = owner.Name
	}
	if lead.BudgetMin != nil {
		ctx["leadBudgetMin"] = fmt.Sprintf("%d", *lead.BudgetMin)
	}
	if lead.BudgetMax != nil {
		ctx["leadBudgetMax"] = fmt.Sprintf("%d", *lead.BudgetMax)
	}
	return ctx
}

// Render substitutes placeholders and normalizes whitespace: runs of two or
// more whitespace characters collapse to a single space and the result is
// trimmed. Normalization applies even when nothing was substituted, since
// authored templates routinely carry incidental double spacing. Unknown
// variables substitute to "" without error.
func Render(text string, ctx map[string]string) string {
	out := variablePattern.ReplaceAllStringFunc(text, func(token string) string {
		name := variablePattern.FindStringSubmatch(token)[1]
		return ctx[name]
	})
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// RenderTemplate renders the body always and the subject only when present.
func RenderTemplate(body string, subject *string, ctx map[string]string) (string, *string) {
	renderedBody := Render(body, ctx)
	if subject == nil {
		return renderedBody, nil
	}
	renderedSubject := Render(*subject, ctx)
	return renderedBody, &renderedSubject
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
