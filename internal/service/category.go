package service

import (
	"regexp"
	"strings"
)

type categoryRule struct {
	pattern  *regexp.Regexp
	category string
}

// categoryRules are tried in order against the lower-cased subject.
var categoryRules = []categoryRule{
	{regexp.MustCompile(`impresora|printer|toner`), "Impresión"},
	{regexp.MustCompile(`correo|email|outlook`), "Correo"},
	{regexp.MustCompile(`acceso|usuario|contrase(ña|na)|password|login`), "Accesos"},
	{regexp.MustCompile(`sap|retail|sistema|software|licencia`), "Software"},
	{regexp.MustCompile(`internet|red|wifi|switch|router|cable`), "Red"},
	{regexp.MustCompile(`pc|equipo|teclado|mouse|monitor`), "Hardware"},
	{regexp.MustCompile(`compra|pedido|cotizaci[oó]n|proveedor`), "Compras"},
}

var departmentCategories = map[string]string{
	"SISTEMAS": "Soporte",
	"CEDIS":    "Logística",
	"COMPRAS":  "Compras",
}

// DefaultCategory applies when neither the subject nor the department match.
const DefaultCategory = "General"

// Categorize derives a ticket category from its subject, falling back to
// the destination department.
func Categorize(subject, departmentName string) string {
	s := strings.ToLower(subject)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(s) {
			return rule.category
		}
	}
	if category, ok := departmentCategories[strings.ToUpper(strings.TrimSpace(departmentName))]; ok {
		return category
	}
	return DefaultCategory
}

// maxPhoneRunes bounds stored contact phones.
const maxPhoneRunes = 25

func sanitizePhone(raw string) *string {
	phone := truncateRunes(strings.TrimSpace(raw), maxPhoneRunes)
	if phone == "" {
		return nil
	}
	return &phone
}
