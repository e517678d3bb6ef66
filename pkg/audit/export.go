package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// ContentType returns the MIME type for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson"
	default:
		return "application/json"
	}
}

// ParseExportFormat validates a format name
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case ExportFormatJSON, ExportFormatCSV, ExportFormatNDJSON:
		return f, nil
	case "":
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Export renders the current tenant's logs (as returned by Logs) in format
func (l *Logger) Export(ctx context.Context, filter auth.AuditFilter, format ExportFormat) ([]byte, error) {
	return Export(l.Logs(ctx, filter), format)
}

// Export renders logs in format
func Export(logs []auth.AuditLog, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatJSON, "":
		return exportJSON(logs)
	case ExportFormatCSV:
		return exportCSV(logs)
	case ExportFormatNDJSON:
		return exportNDJSON(logs)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// exportJSON exports audit logs as JSON array
func exportJSON(logs []auth.AuditLog) ([]byte, error) {
	if logs == nil {
		logs = []auth.AuditLog{}
	}
	return json.MarshalIndent(logs, "", "  ")
}

// exportNDJSON exports audit logs as newline-delimited JSON
func exportNDJSON(logs []auth.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, log := range logs {
		if err := encoder.Encode(log); err != nil {
			return nil, fmt.Errorf("failed to encode audit log: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports audit logs as CSV
func exportCSV(logs []auth.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID",
		"CreatedAt",
		"TenantID",
		"UserID",
		"Action",
		"ResourceType",
		"ResourceID",
		"Changes",
		"IPAddress",
		"UserAgent",
	}

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, log := range logs {
		changes, err := formatChanges(log.Changes)
		if err != nil {
			return nil, err
		}

		row := []string{
			log.ID,
			log.CreatedAt.UTC().Format(time.RFC3339),
			log.TenantID,
			log.UserID,
			log.Action,
			log.ResourceType,
			log.ResourceID,
			changes,
			log.IPAddress,
			log.UserAgent,
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// formatChanges renders changes as compact JSON, or "" when empty
func formatChanges(changes map[string]any) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal changes: %w", err)
	}
	return string(data), nil
}
