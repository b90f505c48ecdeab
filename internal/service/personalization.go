// internal/service/personalization.go
package service

import (
	"regexp"
	"strings"

	"github.com/unclebandit/outreach-backend/internal/model"
)

const (
	DefaultCompany    = "your company"
	DefaultPosition   = "your role"
	DefaultSenderName = "Your Name"
	ValueProposition  = "improving team productivity"
	// ReferenceLabel stands in for the reference client; the story itself is never named.
	ReferenceLabel = "a client"

	referenceToken = "{{reference_company}}"
)

var leftoverPlaceholder = regexp.MustCompile(`\{\{[^}]*\}\}`)

// Personalized is a rendered subject and body for one lead.
type Personalized struct {
	Subject string
	Body    string
}

// Personalize renders subject and body templates for lead. Without a reference,
// body lines mentioning {{reference_company}} are dropped rather than filled in.
// Unknown placeholders are removed from the result.
func Personalize(lead model.Lead, subject, body, reference, senderName string) Personalized {
	if strings.TrimSpace(reference) == "" {
		body = dropLinesWith(body, referenceToken)
	}

	r := strings.NewReplacer(placeholderPairs(lead, reference, senderName)...)
	subject = leftoverPlaceholder.ReplaceAllString(r.Replace(subject), "")
	body = leftoverPlaceholder.ReplaceAllString(r.Replace(body), "")

	return Personalized{Subject: strings.TrimSpace(subject), Body: body}
}

func placeholderPairs(lead model.Lead, reference, senderName string) []string {
	first, last := splitName(lead.Name)
	pairs := []string{
		"{{name}}", lead.Name,
		"{{company}}", orDefault(lead.Company, DefaultCompany),
		"{{position}}", orDefault(lead.Position, DefaultPosition),
		"{{firstName}}", first,
		"{{lastName}}", last,
		"{{senderName}}", orDefault(senderName, DefaultSenderName),
		"{{valueProposition}}", ValueProposition,
	}
	if strings.TrimSpace(reference) != "" {
		pairs = append(pairs, referenceToken, ReferenceLabel)
	}
	return pairs
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

func dropLinesWith(text, token string) string {
	if !strings.Contains(text, token) {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.Contains(line, token) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
