package domain

// Full raw rows as loaded from the support workbook. The read side of
// the pipeline uses the slimmer Ticket/Conversation/Script shapes; these
// carry every ingested column.

type TicketRecord struct {
	TicketNumber string
	Subject      string
	Product      string
	Module       string
	Category     string
	Description  string
	RootCause    string
	Resolution   string
	ScriptID     *string
}

type ConversationRecord struct {
	ConversationID string
	TicketNumber   string
	IssueSummary   string
	Transcript     string
}

type ScriptRecord struct {
	ScriptID      string
	ScriptText    string
	ScriptPurpose string
}

type PlaceholderRecord struct {
	Placeholder string
	Meaning     string
	Example     string
}
