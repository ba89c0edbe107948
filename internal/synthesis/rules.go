package synthesis

import (
	"strings"

	"github.com/rpattn/kbtrust/internal/domain"
)

// sectionRule is the per-section evidence allow-list: only units whose
// source kind and field name both match may be cited by the section.
type sectionRule struct {
	SourceKinds []domain.SourceKind
	FieldNames  []string
}

var sectionRules = map[domain.SectionLabel]sectionRule{
	domain.SectionProblem: {
		SourceKinds: []domain.SourceKind{domain.SourceKindTicket},
		FieldNames:  []string{"Description"},
	},
	domain.SectionSymptoms: {
		SourceKinds: []domain.SourceKind{domain.SourceKindConversation, domain.SourceKindTicket},
		FieldNames:  []string{"Issue_Summary", "Description"},
	},
	domain.SectionRootCause: {
		SourceKinds: []domain.SourceKind{domain.SourceKindTicket},
		FieldNames:  []string{"Root_Cause"},
	},
	domain.SectionResolutionSteps: {
		SourceKinds: []domain.SourceKind{domain.SourceKindTicket},
		FieldNames:  []string{"Resolution"},
	},
	domain.SectionVerificationSteps: {
		SourceKinds: []domain.SourceKind{domain.SourceKindTicket},
		FieldNames:  []string{"Resolution"},
	},
	domain.SectionPlaceholdersNeeded: {
		SourceKinds: []domain.SourceKind{domain.SourceKindScript, domain.SourceKindPlaceholder},
		FieldNames:  []string{"Script_Text_Sanitized", "Meaning"},
	},
}

const (
	// candidateLimit bounds the primary per-section candidate query.
	candidateLimit = 20
	// fallbackLimit bounds the broader TICKET-only fallback query.
	fallbackLimit = 10
	// keywordLimit caps ranking keywords taken from ticket metadata.
	keywordLimit = 3
)

// extractKeywords takes up to keywordLimit lowercase tokens from the
// ticket title, module and category, in that priority order.
func extractKeywords(meta domain.TicketMeta) []string {
	var keywords []string
	for _, value := range []string{meta.Title, meta.Module, meta.Category} {
		for _, token := range strings.Fields(strings.ToLower(value)) {
			keywords = append(keywords, token)
		}
	}
	if len(keywords) > keywordLimit {
		keywords = keywords[:keywordLimit]
	}
	return keywords
}

// keywordScore counts how many of the keywords appear in the snippet.
func keywordScore(snippet string, keywords []string) int {
	lowered := strings.ToLower(snippet)
	score := 0
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			score++
		}
	}
	return score
}
