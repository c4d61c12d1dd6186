package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/httputil"
)

// GET /api/v1/audit?tenant_id=&actor_id=&event_type=&resource_type=&resource_id=&since=&until=&limit=&format=
func (s *Server) auditTrail(w http.ResponseWriter, r *http.Request) {
	filter := audit.SearchFilter{
		TenantID:     httputil.ParseQueryString(r, "tenant_id", ""),
		ActorID:      httputil.ParseQueryString(r, "actor_id", ""),
		EventType:    audit.EventType(httputil.ParseQueryString(r, "event_type", "")),
		ResourceType: audit.ResourceType(httputil.ParseQueryString(r, "resource_type", "")),
		ResourceID:   httputil.ParseQueryString(r, "resource_id", ""),
	}

	var err error
	if filter.StartTime, err = httputil.ParseQueryTime(r, "since"); err != nil {
		httputil.WriteBadRequest(w, "since must be an RFC 3339 timestamp")
		return
	}
	if filter.EndTime, err = httputil.ParseQueryTime(r, "until"); err != nil {
		httputil.WriteBadRequest(w, "until must be an RFC 3339 timestamp")
		return
	}
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", 100); err != nil || filter.Limit < 1 {
		httputil.WriteBadRequest(w, "limit must be a positive integer")
		return
	}

	trail, err := s.svc.AuditTrail(r.Context(), actor(r), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := audit.ExportFormat(httputil.ParseQueryString(r, "format", ""))
	if format == "" {
		httputil.WriteSuccess(w, trail)
		return
	}
	switch format {
	case audit.ExportFormatJSON, audit.ExportFormatCSV, audit.ExportFormatNDJSON:
	default:
		httputil.WriteBadRequest(w, "format must be json, csv or ndjson")
		return
	}

	w.Header().Set("Content-Type", audit.ContentType(format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="audit-%s.%s"`, time.Now().UTC().Format("20060102"), format))
	if err := audit.Export(w, trail, format); err != nil {
		s.logger.WithError(err).Warn("Failed to stream audit export")
	}
}
