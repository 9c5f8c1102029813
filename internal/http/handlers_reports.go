package http

import (
	"bytes"
	"fmt"
	"net/http"

	"timetrack/internal/core"
	"timetrack/internal/log"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Reports.Report(r.Context(), parsePeriod(r.URL.Query()))
	if err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}
	OK(w, report)
}

// handleExportReport streams the CSV for ?period=. The body is rendered
// into a buffer first so a failure can still answer with a JSON error.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	period := parsePeriod(r.URL.Query())

	var buf bytes.Buffer
	if err := s.svc.Reports.Export(r.Context(), period, &buf); err != nil {
		writeError(w, r, core.EntityTimeEntry, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.csv"`, period))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write CSV export",
			log.FieldPeriod, string(period),
			log.FieldError, err.Error())
	}
}
