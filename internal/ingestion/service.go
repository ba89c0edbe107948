// Package ingestion loads the support workbook into the raw source
// tables and re-extracts the evidence unit store from it. The rest of
// the pipeline treats both as read-only.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

// ErrUnsupportedFormat is returned when an uploaded file is not an
// Excel workbook.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Workbook sheet names and the columns each must carry.
const (
	sheetTickets      = "Tickets"
	sheetConversation = "Conversations"
	sheetScripts      = "Scripts_Master"
	sheetPlaceholders = "Placeholder_Dictionary"
)

var requiredColumns = map[string][]string{
	sheetTickets:      {"Ticket_Number"},
	sheetConversation: {"Conversation_ID", "Ticket_Number"},
	sheetScripts:      {"Script_ID", "Script_Text_Sanitized"},
	sheetPlaceholders: {"Placeholder", "Meaning"},
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Service ingests support workbooks into the evidence store.
type Service struct {
	runner TxRunner
	store  repository.EvidenceIngestRepository
}

// NewService creates a workbook ingestion service.
func NewService(runner TxRunner, store repository.EvidenceIngestRepository) *Service {
	return &Service{runner: runner, store: store}
}

// Summary reports row and evidence counts for one ingestion run.
type Summary struct {
	Tickets       int `json:"tickets"`
	Conversations int `json:"conversations"`
	Scripts       int `json:"scripts"`
	Placeholders  int `json:"placeholders"`
	EvidenceUnits int `json:"evidence_units"`
}

// IngestWorkbook replaces the raw source tables and the evidence unit
// store with the workbook's contents, atomically. Evidence unit ids are
// deterministic, so re-ingesting the same workbook yields the same ids
// and existing citations stay resolvable.
func (s *Service) IngestWorkbook(ctx context.Context, fileName string, data io.Reader) (Summary, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
	default:
		return Summary{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read workbook: %w", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	tickets, err := readTickets(f)
	if err != nil {
		return Summary{}, err
	}
	conversations, err := readConversations(f)
	if err != nil {
		return Summary{}, err
	}
	scripts, err := readScripts(f)
	if err != nil {
		return Summary{}, err
	}
	placeholders, err := readPlaceholders(f)
	if err != nil {
		return Summary{}, err
	}

	units := extractEvidence(tickets, conversations, scripts, placeholders)

	err = s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		store := s.store.WithTx(tx)
		if err := store.ReplaceTickets(ctx, tickets); err != nil {
			return err
		}
		if err := store.ReplaceConversations(ctx, conversations); err != nil {
			return err
		}
		if err := store.ReplaceScripts(ctx, scripts); err != nil {
			return err
		}
		if err := store.ReplacePlaceholders(ctx, placeholders); err != nil {
			return err
		}
		return store.ReplaceEvidenceUnits(ctx, units)
	})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Tickets:       len(tickets),
		Conversations: len(conversations),
		Scripts:       len(scripts),
		Placeholders:  len(placeholders),
		EvidenceUnits: len(units),
	}
	log.Printf("[INGEST] loaded %s: %d tickets, %d conversations, %d scripts, %d placeholders, %d evidence units",
		fileName, summary.Tickets, summary.Conversations, summary.Scripts, summary.Placeholders, summary.EvidenceUnits)
	return summary, nil
}

// sheetTable is one parsed sheet: a header index plus data rows.
type sheetTable struct {
	columns map[string]int
	rows    [][]string
}

func readSheet(f *excelize.File, sheet string) (sheetTable, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return sheetTable{}, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return sheetTable{}, fmt.Errorf("sheet %s is empty", sheet)
	}

	columns := map[string]int{}
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name != "" {
			columns[name] = i
		}
	}
	var missing []string
	for _, name := range requiredColumns[sheet] {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return sheetTable{}, fmt.Errorf("missing columns in %s: %s", sheet, strings.Join(missing, ", "))
	}
	return sheetTable{columns: columns, rows: rows[1:]}, nil
}

func (t sheetTable) cell(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readTickets(f *excelize.File) ([]domain.TicketRecord, error) {
	table, err := readSheet(f, sheetTickets)
	if err != nil {
		return nil, err
	}
	records := []domain.TicketRecord{}
	for _, row := range table.rows {
		ticketID := table.cell(row, "Ticket_Number")
		if ticketID == "" {
			continue
		}
		record := domain.TicketRecord{
			TicketNumber: ticketID,
			Subject:      table.cell(row, "Subject"),
			Product:      table.cell(row, "Product"),
			Module:       table.cell(row, "Module"),
			Category:     table.cell(row, "Category"),
			Description:  table.cell(row, "Description"),
			RootCause:    table.cell(row, "Root_Cause"),
			Resolution:   table.cell(row, "Resolution"),
		}
		if scriptID := table.cell(row, "Script_ID"); scriptID != "" {
			record.ScriptID = &scriptID
		}
		records = append(records, record)
	}
	return records, nil
}

func readConversations(f *excelize.File) ([]domain.ConversationRecord, error) {
	table, err := readSheet(f, sheetConversation)
	if err != nil {
		return nil, err
	}
	records := []domain.ConversationRecord{}
	for _, row := range table.rows {
		convID := table.cell(row, "Conversation_ID")
		if convID == "" {
			continue
		}
		records = append(records, domain.ConversationRecord{
			ConversationID: convID,
			TicketNumber:   table.cell(row, "Ticket_Number"),
			IssueSummary:   table.cell(row, "Issue_Summary"),
			Transcript:     table.cell(row, "Transcript"),
		})
	}
	return records, nil
}

func readScripts(f *excelize.File) ([]domain.ScriptRecord, error) {
	table, err := readSheet(f, sheetScripts)
	if err != nil {
		return nil, err
	}
	records := []domain.ScriptRecord{}
	for _, row := range table.rows {
		scriptID := table.cell(row, "Script_ID")
		if scriptID == "" {
			continue
		}
		records = append(records, domain.ScriptRecord{
			ScriptID:      scriptID,
			ScriptText:    table.cell(row, "Script_Text_Sanitized"),
			ScriptPurpose: table.cell(row, "Script_Purpose"),
		})
	}
	return records, nil
}

func readPlaceholders(f *excelize.File) ([]domain.PlaceholderRecord, error) {
	table, err := readSheet(f, sheetPlaceholders)
	if err != nil {
		return nil, err
	}
	records := []domain.PlaceholderRecord{}
	for _, row := range table.rows {
		placeholder := table.cell(row, "Placeholder")
		if placeholder == "" {
			continue
		}
		records = append(records, domain.PlaceholderRecord{
			Placeholder: placeholder,
			Meaning:     table.cell(row, "Meaning"),
			Example:     table.cell(row, "Example"),
		})
	}
	return records, nil
}

// BuildEvidenceUnitID derives the deterministic evidence unit id for a
// chunk: EU-{source_type}-{source_id}-{field_name}-{offset_start}.
func BuildEvidenceUnitID(kind domain.SourceKind, sourceID, fieldName string, offsetStart int) string {
	return fmt.Sprintf("EU-%s-%s-%s-%d", kind, sourceID, fieldName, offsetStart)
}

func extractEvidence(
	tickets []domain.TicketRecord,
	conversations []domain.ConversationRecord,
	scripts []domain.ScriptRecord,
	placeholders []domain.PlaceholderRecord,
) []domain.EvidenceUnit {
	units := []domain.EvidenceUnit{}
	add := func(kind domain.SourceKind, sourceID, fieldName string, chunks []Chunk) {
		for _, chunk := range chunks {
			snippet := strings.TrimSpace(chunk.Text)
			if snippet == "" {
				continue
			}
			units = append(units, domain.EvidenceUnit{
				EvidenceUnitID:  BuildEvidenceUnitID(kind, sourceID, fieldName, chunk.Start),
				SourceKind:      kind,
				SourceID:        sourceID,
				FieldName:       fieldName,
				CharOffsetStart: chunk.Start,
				CharOffsetEnd:   chunk.End,
				ChunkIndex:      chunk.Index,
				SnippetText:     snippet,
			})
		}
	}

	for _, ticket := range tickets {
		if ticket.Subject != "" {
			add(domain.SourceKindTicket, ticket.TicketNumber, "Subject", splitParagraphThenSentence(ticket.Subject))
		}
		if ticket.Description != "" {
			add(domain.SourceKindTicket, ticket.TicketNumber, "Description", splitParagraphThenSentence(ticket.Description))
		}
		if ticket.RootCause != "" {
			add(domain.SourceKindTicket, ticket.TicketNumber, "Root_Cause", splitParagraphThenSentence(ticket.RootCause))
		}
		if ticket.Resolution != "" {
			add(domain.SourceKindTicket, ticket.TicketNumber, "Resolution", splitResolution(ticket.Resolution))
		}
	}

	for _, conv := range conversations {
		if conv.IssueSummary != "" {
			add(domain.SourceKindConversation, conv.ConversationID, "Issue_Summary", splitSentenceish(conv.IssueSummary))
		}
		if conv.Transcript != "" {
			add(domain.SourceKindConversation, conv.ConversationID, "Transcript", splitLines(conv.Transcript))
		}
	}

	for _, script := range scripts {
		if script.ScriptText != "" {
			add(domain.SourceKindScript, script.ScriptID, "Script_Text_Sanitized", splitScriptText(script.ScriptText))
		}
		if script.ScriptPurpose != "" {
			add(domain.SourceKindScript, script.ScriptID, "Script_Purpose", splitSentenceish(script.ScriptPurpose))
		}
	}

	for _, entry := range placeholders {
		if entry.Meaning != "" {
			add(domain.SourceKindPlaceholder, entry.Placeholder, "Meaning", wholeText(entry.Meaning))
		}
		if entry.Example != "" {
			add(domain.SourceKindPlaceholder, entry.Placeholder, "Example", wholeText(entry.Example))
		}
	}

	return units
}
