package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	coremodel "NetGuard/internal/core/model"
	"NetGuard/internal/engine/manager"

	"github.com/gorilla/mux"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	mgr *manager.Manager
}

// pidsRequest is the body of the terminate and restart endpoints.
type pidsRequest struct {
	PIDs []int32 `json:"pids"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// refreshHandler collects a fresh snapshot on demand.
func (h *APIHandler) refreshHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.mgr.Refresh(r.Context())
	if err != nil {
		var collErr *coremodel.CollectorError
		if errors.As(err, &collErr) {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// portsHandler queries the current table. A non-empty port expression is
// recorded in the query history.
func (h *APIHandler) portsHandler(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	search := r.URL.Query().Get("search")

	entries, err := h.mgr.Query(expr, search)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if expr != "" {
		h.mgr.AddHistory(expr)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *APIHandler) groupsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Groups())
}

func (h *APIHandler) groupResolveHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := h.mgr.Groups()[name]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown group: " + name})
		return
	}
	ports, err := h.mgr.ResolveGroup(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "ports": ports})
}

// terminateHandler stops the requested pids. Per-pid failures are data in
// the outcome map, not an HTTP error.
func (h *APIHandler) terminateHandler(w http.ResponseWriter, r *http.Request) {
	var req pidsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mgr.Terminate(r.Context(), req.PIDs))
}

func (h *APIHandler) restartHandler(w http.ResponseWriter, r *http.Request) {
	var req pidsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mgr.Restart(r.Context(), req.PIDs))
}

func (h *APIHandler) processHandler(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(mux.Vars(r)["pid"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	info, err := h.mgr.ProcessDetail(int32(pid))
	switch {
	case errors.Is(err, coremodel.ErrNoSuchProcess):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, coremodel.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

func (h *APIHandler) monitorStartHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port int `json:"port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.mgr.StartMonitor(req.Port); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"port": req.Port})
}

func (h *APIHandler) monitorStopHandler(w http.ResponseWriter, r *http.Request) {
	h.mgr.StopMonitor()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *APIHandler) monitorEventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"port":   h.mgr.MonitorPort(),
		"events": h.mgr.MonitorEvents(),
	})
}

func (h *APIHandler) historyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.History())
}
