package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fakeyudi/linewheel/internal/app"
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/export"
	"github.com/fakeyudi/linewheel/internal/logstore"
	"github.com/fakeyudi/linewheel/internal/session"
)

type startRequest struct {
	Task string `json:"task"`
	Memo string `json:"memo"`
}

type stopRequest struct {
	Reason string `json:"reason"`
}

type memoRequest struct {
	Memo string `json:"memo"`
}

// mutationResponse is returned by every operation that may finalize a
// record.
type mutationResponse struct {
	Finalized *session.LogEntry `json:"finalized"`
	Status    app.Status        `json:"status"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownLine), errors.Is(err, logstore.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyTask), errors.Is(err, config.ErrInvalidImport):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decodeOptional decodes a JSON body into v; an empty body leaves v as is.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func pathLine(w http.ResponseWriter, r *http.Request) (session.LineID, bool) {
	line, err := session.ParseLine(r.PathValue("line"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return 0, false
	}
	return line, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	line, ok := pathLine(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}
	// Configured labels and their shorthands resolve; anything else is
	// taken verbatim.
	task := req.Task
	if resolved, err := s.coord.Config().ResolveTask(line, req.Task); err == nil {
		task = resolved
	}
	entry, err := s.coord.Start(line, task, req.Memo)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Finalized: entry, Status: s.coord.Status()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	line, ok := pathLine(w, r)
	if !ok {
		return
	}
	var req stopRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := s.coord.Stop(line, req.Reason)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Finalized: entry, Status: s.coord.Status()})
}

func (s *Server) handleMemo(w http.ResponseWriter, r *http.Request) {
	line, ok := pathLine(w, r)
	if !ok {
		return
	}
	var req memoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := s.coord.UpdateMemo(line, req.Memo)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Finalized: entry, Status: s.coord.Status()})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	u, err := s.coord.Undo()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Undone *session.UndoInfo `json:"undone"`
		Status app.Status        `json:"status"`
	}{u, s.coord.Status()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	line, ok := pathLine(w, r)
	if !ok {
		return
	}
	if err := s.coord.SelectLine(line); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleCenter(w http.ResponseWriter, r *http.Request) {
	action, err := s.coord.CenterClick()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Action app.CenterAction `json:"action"`
		Status app.Status       `json:"status"`
	}{action, s.coord.Status()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := logstore.SearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.coord.SearchLogs(r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if entries == nil {
		entries = []session.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	line, ok := pathLine(w, r)
	if !ok {
		return
	}
	if err := s.coord.DeleteLog(line, r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := s.coord.AllLogs()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	renderer := &export.CSVRenderer{ReasonColumn: s.opts.ReasonColumn, Location: s.opts.Location}
	data, err := renderer.Render(export.SortByStart(entries))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := export.FileName(s.coord.Status().Now, export.FormatCSV)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Config())
}

func (s *Server) handleImportConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg, err := s.coord.ImportConfig(data)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
