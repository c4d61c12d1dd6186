package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

var csvColumns = []string{
	"id", "timestamp", "event_type", "status", "actor_id", "tenant_id",
	"resource_type", "resource_id", "request_id", "message", "error_message",
}

// ContentType is the media type Export writes for format
func ContentType(format ExportFormat) string {
	switch format {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson"
	}
	return "application/json"
}

// Export writes events to w. An empty format means JSON.
func Export(w io.Writer, events []*AuditEvent, format ExportFormat) error {
	switch format {
	case ExportFormatJSON, "":
		if events == nil {
			events = []*AuditEvent{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	case ExportFormatNDJSON:
		enc := json.NewEncoder(w)
		for _, event := range events {
			if err := enc.Encode(event); err != nil {
				return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
			}
		}
		return nil
	case ExportFormatCSV:
		return exportCSV(w, events)
	}
	return fmt.Errorf("unsupported export format: %s", format)
}

func exportCSV(w io.Writer, events []*AuditEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, e := range events {
		err := cw.Write([]string{
			e.ID, e.Timestamp.UTC().Format(time.RFC3339), string(e.EventType), string(e.Status),
			e.ActorID, e.TenantID, string(e.ResourceType), e.ResourceID, e.RequestID,
			e.Message, e.ErrorMessage,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
