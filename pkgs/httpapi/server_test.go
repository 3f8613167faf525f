package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smarty-bms/smarty/pkgs/config"
	"github.com/smarty-bms/smarty/pkgs/engine"
	"github.com/smarty-bms/smarty/pkgs/fieldio"
	"github.com/smarty-bms/smarty/pkgs/model"
	"github.com/smarty-bms/smarty/pkgs/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Configuration{
		Engine: config.Engine{CycleMs: 100, MinSleepMs: 10, Workers: 2},
	}
	e := engine.New(s, fieldio.NewLoopbackDriver(), nil, cfg)
	return NewServer(s, e), s
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		var v interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
		if m, ok := v.(map[string]interface{}); ok {
			decoded = m
		}
	}
	return rec, decoded
}

func seedVariable(t *testing.T, s *store.Store, groupID int64, name, value string) *model.Point {
	t.Helper()
	p := &model.Point{
		Name: name, GroupID: groupID, Type: model.PointVariable,
		DataType: model.TypeReal, IsActive: true, DecimalPlaces: 2,
	}
	if value != "" {
		p.ReadValue = &value
	}
	require.NoError(t, s.CreatePoint(p))
	return p
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}

func TestValidateScriptReportsErrorInBody(t *testing.T) {
	srv, s := newTestServer(t)
	sp := &model.ScriptProgram{Name: "v", CodeText: "analogue_output y;\ny = 1 +\n"}
	require.NoError(t, s.CreateScriptProgram(sp))

	rec, body := doJSON(t, srv, http.MethodPost, "/api/script/programs/1/validate", "")
	require.Equal(t, http.StatusOK, rec.Code, "compile problems stay in the body")
	require.Equal(t, "invalid", body["status"])
	require.Equal(t, float64(2), body["line"])
}

func TestValidateScriptNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/script/programs/99/validate", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecuteScript(t *testing.T) {
	srv, s := newTestServer(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	in := seedVariable(t, s, g.ID, "x", "3")
	out := seedVariable(t, s, g.ID, "y", "")

	sp := &model.ScriptProgram{
		Name:     "scale",
		CodeText: "analogue_input x;\nanalogue_output y;\ny = x * 2 + 1\n",
	}
	require.NoError(t, s.CreateScriptProgram(sp))
	require.NoError(t, s.SetBindings(sp.ID, []model.ScriptBinding{
		{VariableName: "x", PointID: in.ID, Direction: model.BindingInput},
		{VariableName: "y", PointID: out.ID, Direction: model.BindingOutput},
	}))

	rec, body := doJSON(t, srv, http.MethodPost, "/api/script/programs/1/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, model.ExecutionSuccess, body["status"])
	require.NotEmpty(t, body["run_id"])

	got, err := s.GetPoint(out.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WriteValue)
	require.Equal(t, "7", *got.WriteValue)
}

func TestExecuteFBDAndRuntime(t *testing.T) {
	srv, s := newTestServer(t)
	prog := &model.FBDProgram{
		Name:        "const",
		DiagramJSON: `{"nodes":[{"id":"c","type":"CONST_ANA","inputs":0,"outputs":1,"params":{"value":2.5}}],"edges":[]}`,
	}
	require.NoError(t, s.CreateFBDProgram(prog))

	rec, body := doJSON(t, srv, http.MethodPost, "/api/fbd/programs/1/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", body["status"])
	values := body["runtime_values"].(map[string]interface{})
	require.Equal(t, 2.5, values["c_out_0"])

	rec, body = doJSON(t, srv, http.MethodGet, "/api/fbd/programs/1/runtime", "")
	require.Equal(t, http.StatusOK, rec.Code)
	values = body["runtime_values"].(map[string]interface{})
	require.Equal(t, 2.5, values["c_out_0"])
}

func TestForcePoint(t *testing.T) {
	srv, s := newTestServer(t)
	g := &model.PointGroup{Name: "g", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	p := seedVariable(t, s, g.ID, "sp", "20")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/points/1/force", `{"forced":true,"value":"42"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["forced"])

	got, err := s.GetPoint(p.ID)
	require.NoError(t, err)
	require.True(t, got.IsForced)
	require.Equal(t, "42", got.ForcedValue)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/points/99/force", `{"forced":true,"value":"1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcknowledgeAlarm(t *testing.T) {
	srv, s := newTestServer(t)
	created, err := s.EnsureAlarm(nil, "Threshold Violation", "too hot", model.SeverityCritical)
	require.NoError(t, err)
	require.True(t, created)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/alarms/1/ack", `{"by":"operator"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// already acknowledged
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/alarms/1/ack", `{"by":"operator"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// actor is mandatory
	rec, _ = doJSON(t, srv, http.MethodPost, "/api/alarms/1/ack", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/alarms?active=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDuplicateDevice(t *testing.T) {
	srv, s := newTestServer(t)
	d := &model.Device{Name: "AHU", Protocol: model.ProtocolModbusTCP}
	require.NoError(t, s.CreateDevice(d))

	rec, body := doJSON(t, srv, http.MethodPost, "/api/devices/1/duplicate", `{"count":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, body["ids"], 2)

	devices, err := s.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 3)

	rec, _ = doJSON(t, srv, http.MethodPost, "/api/devices/1/duplicate", `{"count":500}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogueListings(t *testing.T) {
	srv, s := newTestServer(t)
	d := &model.Device{Name: "plc", Protocol: model.ProtocolModbusTCP}
	require.NoError(t, s.CreateDevice(d))
	r := &model.Register{DeviceID: d.ID, Name: "ai1", SignalType: model.SignalAnalog,
		Direction: model.DirectionInput, DataType: model.TypeReal, IsActive: true}
	require.NoError(t, s.CreateRegister(r))
	g := &model.PointGroup{Name: "hvac", IsActive: true}
	require.NoError(t, s.CreateGroup(g))
	seedVariable(t, s, g.ID, "sp", "20")

	for _, path := range []string{
		"/api/devices",
		"/api/devices/1/registers",
		"/api/groups",
		"/api/groups/1/points",
		"/api/points/1",
		"/api/points/1/logs",
		"/api/faults",
		"/api/fbd/programs",
		"/api/script/programs",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}
