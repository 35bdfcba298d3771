package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/common"
)

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		ActorID:    q.Get("actor"),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, common.ErrInvalidInput
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, common.ErrInvalidInput
		}
		f.To = t
	}
	return f, nil
}

// QueryAudit returns one page of audit entries, newest first.
func (h *Handlers) QueryAudit(w http.ResponseWriter, r *http.Request) {
	f, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	entries, err := h.audit.Query(r.Context(), f, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// AuditSummary returns grouped activity counts over a trailing window.
func (h *Handlers) AuditSummary(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days < 1 {
		days = 30
	}
	rows, err := h.audit.Summarize(r.Context(), r.URL.Query().Get("actor"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": rows})
}

// ExportAudit renders matching entries as CSV. With dest=s3 the file is
// pushed to object storage instead of returned inline. The export itself is
// a recorded action.
func (h *Handlers) ExportAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}

	f, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := h.audit.Export(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		ActorID:    p.ID,
		Action:     audit.ActionExportAudit,
		EntityType: "audit",
		SourceAddr: r.RemoteAddr,
	})

	if r.URL.Query().Get("dest") == "s3" {
		if h.exporter == nil {
			writeErrorCode(w, http.StatusBadRequest, "export_destination_unavailable")
			return
		}
		key := audit.ExportKey(time.Now().UTC())
		if err := h.exporter.Upload(r.Context(), key, body); err != nil {
			h.log.Error(r.Context(), "audit export upload failed", "key", key, "error", err)
			writeErrorCode(w, http.StatusBadGateway, "export_upload_failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
