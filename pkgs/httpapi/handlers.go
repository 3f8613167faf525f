package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func statusFor(err error) int {
	if errors.Cause(err) == sql.ErrNoRows {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// validateScript compiles a program without running it. Compilation
// problems are reported in the body, not the HTTP status.
func (s *Server) validateScript(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ValidateScript(pathID(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type executionResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Log    string `json:"log"`
}

func (s *Server) executeScript(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ExecuteScript(r.Context(), pathID(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, executionResponse{
		RunID:  uuid.NewString(),
		Status: res.Status,
		Log:    res.Log,
	})
}

type fbdExecutionResponse struct {
	RunID         string                 `json:"run_id"`
	Status        string                 `json:"status"`
	RuntimeValues map[string]interface{} `json:"runtime_values"`
}

func (s *Server) executeFBD(w http.ResponseWriter, r *http.Request) {
	flat, err := s.engine.ExecuteFBD(r.Context(), pathID(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, fbdExecutionResponse{
		RunID:         uuid.NewString(),
		Status:        "success",
		RuntimeValues: flat,
	})
}

// fbdRuntime returns the last persisted runtime values of a program.
func (s *Server) fbdRuntime(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetFBDProgram(pathID(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	values := map[string]interface{}{}
	if p.RuntimeValues != "" {
		if err := json.Unmarshal([]byte(p.RuntimeValues), &values); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"program_id":     p.ID,
		"runtime_values": values,
	})
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) listRegisters(w http.ResponseWriter, r *http.Request) {
	registers, err := s.store.ListRegisters(pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, registers)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) listPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.ListPoints(pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) getPoint(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPoint(pathID(r))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := s.store.ListLogs(pathID(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type forceRequest struct {
	Forced bool   `json:"forced"`
	Value  string `json:"value"`
}

func (s *Server) forcePoint(w http.ResponseWriter, r *http.Request) {
	var req forceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := pathID(r)
	if _, err := s.store.GetPoint(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.store.ForcePoint(id, req.Forced, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "forced": req.Forced})
}

func (s *Server) listAlarms(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "1"
	alarms, err := s.store.ListAlarms(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, alarms)
}

type ackRequest struct {
	By string `json:"by"`
}

func (s *Server) ackAlarm(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.By == "" {
		writeError(w, http.StatusBadRequest, errors.New("acknowledging actor is required"))
		return
	}
	if err := s.store.AcknowledgeAlarm(pathID(r), req.By); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (s *Server) listFaults(w http.ResponseWriter, r *http.Request) {
	faults, err := s.store.OpenFaults()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, faults)
}

func (s *Server) listFBDPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.store.ListFBDPrograms()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (s *Server) listScriptPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.store.ListScriptPrograms()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

type duplicateRequest struct {
	Count int `json:"count"`
}

// duplicate wraps the store's clone operations behind one request shape:
// {"count": n}, defaulting to a single copy.
func (s *Server) duplicate(fn func(id int64, count int) ([]int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := duplicateRequest{Count: 1}
		if r.Body != nil && r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		if req.Count < 1 || req.Count > 100 {
			writeError(w, http.StatusBadRequest, errors.Errorf("count must be between 1 and 100, got %d", req.Count))
			return
		}
		ids, err := fn(pathID(r), req.Count)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"ids": ids})
	}
}
