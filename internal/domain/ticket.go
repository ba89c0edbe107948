package domain

// Ticket holds the metadata row for one support ticket.
type Ticket struct {
	TicketNumber string  `json:"ticket_number"`
	Subject      string  `json:"subject"`
	Product      string  `json:"product"`
	Module       string  `json:"module"`
	Category     string  `json:"category"`
	ScriptID     *string `json:"script_id,omitempty"`
}

// Conversation is one support interaction transcript row tied to a ticket.
type Conversation struct {
	ConversationID string `json:"conversation_id"`
	TicketNumber   string `json:"ticket_number"`
	IssueSummary   string `json:"issue_summary"`
}

// Script is a sanitized remediation script referenced by tickets.
type Script struct {
	ScriptID   string `json:"script_id"`
	ScriptText string `json:"script_text_sanitized"`
}

// PlaceholderEntry maps one bracket token to its meaning.
type PlaceholderEntry struct {
	Placeholder string `json:"placeholder"`
	Meaning     string `json:"meaning"`
}

// TicketContext bundles everything the assembler needs about one ticket.
type TicketContext struct {
	Ticket        Ticket             `json:"ticket"`
	Conversations []Conversation     `json:"conversations"`
	Scripts       []Script           `json:"scripts"`
	Placeholders  []PlaceholderEntry `json:"placeholders"`
}

// SourceIDs lists every source record id that may carry evidence for the
// ticket: the ticket itself, its conversations, and its scripts.
func (c TicketContext) SourceIDs() []string {
	ids := []string{c.Ticket.TicketNumber}
	for _, convo := range c.Conversations {
		if convo.ConversationID != "" {
			ids = append(ids, convo.ConversationID)
		}
	}
	for _, script := range c.Scripts {
		if script.ScriptID != "" {
			ids = append(ids, script.ScriptID)
		}
	}
	return ids
}

// Meta extracts the keyword-bearing ticket metadata used for ranking.
func (c TicketContext) Meta() TicketMeta {
	return TicketMeta{
		TicketID: c.Ticket.TicketNumber,
		Title:    c.Ticket.Subject,
		Module:   c.Ticket.Module,
		Category: c.Ticket.Category,
	}
}

// TicketMeta is the slim metadata view threaded through section synthesis.
type TicketMeta struct {
	TicketID string `json:"ticket_id"`
	Title    string `json:"title"`
	Module   string `json:"module"`
	Category string `json:"category"`
}
