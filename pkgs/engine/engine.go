// Package engine drives the runtime: a fixed-cadence scheduler that
// refreshes points, evaluates FBD programs and runs scripts, in that strict
// order, persisting only what changed.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smarty-bms/smarty/pkgs/config"
	"github.com/smarty-bms/smarty/pkgs/fbd"
	"github.com/smarty-bms/smarty/pkgs/fieldio"
	"github.com/smarty-bms/smarty/pkgs/model"
	"github.com/smarty-bms/smarty/pkgs/output"
	"github.com/smarty-bms/smarty/pkgs/pointproc"
	"github.com/smarty-bms/smarty/pkgs/script"
	"github.com/smarty-bms/smarty/pkgs/store"
)

// Engine owns every runtime field in the store: point read/write values,
// FBD runtime maps and script execution metadata. Manual executions from
// the HTTP surface serialize against the loop through the same mutex.
type Engine struct {
	store   *store.Store
	driver  fieldio.Driver
	printer output.Printer

	cycleTime      time.Duration
	minSleep       time.Duration
	telemetryEvery uint64
	workers        int

	// mu serializes cycles with manual execute requests
	mu     sync.Mutex
	cycles uint64

	// managed alarms and faults raised in the previous cycle; anything
	// that stops being raised gets closed
	prevAlarms map[int64]map[string]bool
	prevFaults map[int64]bool
}

// New wires the scheduler. driver may be nil to skip field bus polling;
// printer may be nil to silence telemetry lines.
func New(s *store.Store, driver fieldio.Driver, printer output.Printer, cfg *config.Configuration) *Engine {
	workers := int(cfg.Engine.Workers)
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:          s,
		driver:         driver,
		printer:        printer,
		cycleTime:      cfg.CycleInterval(),
		minSleep:       cfg.MinSleep(),
		telemetryEvery: uint64(cfg.Engine.TelemetryEvery),
		workers:        workers,
		prevAlarms:     map[int64]map[string]bool{},
		prevFaults:     map[int64]bool{},
	}
}

// Run loops until ctx is cancelled. An overrunning cycle starts the next
// one after the minimum sleep; there is no back-pressure.
func (e *Engine) Run(ctx context.Context) error {
	logrus.Infof("engine started, cycle target %s", e.cycleTime)
	for {
		start := time.Now()
		if err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				logrus.Info("engine stopped")
				return nil
			}
			logrus.Errorf("cycle failed: %s", err)
		}

		sleep := e.cycleTime - time.Since(start)
		if sleep < e.minSleep {
			sleep = e.minSleep
			cycleOverruns.Inc()
		}
		select {
		case <-ctx.Done():
			logrus.Info("engine stopped")
			return nil
		case <-time.After(sleep):
		}
	}
}

// RunCycle performs one full P1/P2/P3 pass. Exported for the HTTP surface
// and tests; the loop calls it on cadence.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cycleStart := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.driver != nil {
		e.pollRegisters()
	}

	p1 := time.Now()
	table, err := e.refreshPoints(ctx)
	if err != nil {
		return err
	}
	phaseDuration.WithLabelValues("p1").Observe(time.Since(p1).Seconds())

	if err := ctx.Err(); err != nil {
		return err
	}
	p2 := time.Now()
	nFBD := e.runDiagrams(ctx, table)
	phaseDuration.WithLabelValues("p2").Observe(time.Since(p2).Seconds())

	if err := ctx.Err(); err != nil {
		return err
	}
	p3 := time.Now()
	nScripts := e.runScripts(ctx, table)
	phaseDuration.WithLabelValues("p3").Observe(time.Since(p3).Seconds())

	elapsed := time.Since(cycleStart)
	cyclesTotal.Inc()
	cycleDuration.Observe(elapsed.Seconds())

	e.cycles++
	if e.printer != nil && e.telemetryEvery > 0 && e.cycles%e.telemetryEvery == 0 {
		e.printer.Printf("cycle %d: %d points, %d diagrams, %d scripts in %s\n",
			e.cycles, len(table.points), nFBD, nScripts, elapsed.Round(time.Microsecond))
	}
	return nil
}

// pollRegisters pulls raw values from the field bus into the register rows.
func (e *Engine) pollRegisters() {
	regs, err := e.store.RegistersByID()
	if err != nil {
		logrus.Errorf("register poll: %s", err)
		return
	}
	for _, reg := range regs {
		if !reg.IsActive {
			continue
		}
		value, status, err := e.driver.ReadRegister(reg)
		if err != nil {
			if reg.ErrorStatus != model.StatusCommError {
				_ = e.store.UpdateRegisterValue(reg.ID, reg.CurrentValue, model.StatusCommError, err.Error())
			}
			continue
		}
		if value != reg.CurrentValue || status != reg.ErrorStatus {
			if err := e.store.UpdateRegisterValue(reg.ID, value, status, ""); err != nil {
				logrus.Errorf("register %d update: %s", reg.ID, err)
			}
		}
	}
}

// refreshPoints is P1: resolve every active point in the worker pool, then
// apply side effects and persist changed read values in point-id order.
func (e *Engine) refreshPoints(ctx context.Context) (*pointTable, error) {
	var points []model.Point
	err := e.retry("load points", func() error {
		var err error
		points, err = e.store.ActivePoints()
		return err
	})
	if err != nil {
		return nil, err
	}
	var regs map[int64]model.Register
	err = e.retry("load registers", func() error {
		var err error
		regs, err = e.store.RegistersByID()
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]pointproc.Result, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range points {
		i := i
		g.Go(func() error {
			p := &points[i]
			var reg *model.Register
			if p.RegisterID != nil {
				if r, ok := regs[*p.RegisterID]; ok {
					reg = &r
				}
			}
			results[i] = pointproc.Resolve(gctx, p, reg, e.store)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	pointsProcessed.Add(float64(len(points)))

	// points arrive ordered by id, so iterating results in slice order
	// preserves the deterministic append order of history rows
	table := newPointTable()
	raised := map[int64]map[string]bool{}
	faulted := map[int64]bool{}
	var updates []store.PointRuntime

	for i := range points {
		p := points[i]
		res := results[i]
		table.add(p, res.Value)

		if p.ReadValue == nil || *p.ReadValue != res.Text {
			text := res.Text
			updates = append(updates, store.PointRuntime{ID: p.ID, ReadValue: &text, ErrorStatus: p.ErrorStatus})
		}
		e.applyEffects(res.Effects, raised, faulted)
	}

	e.closeLapsed(raised, faulted)
	e.prevAlarms = raised
	e.prevFaults = faulted

	return table, e.retry("persist points", func() error {
		return e.store.UpdatePointRuntimes(updates)
	})
}

func (e *Engine) applyEffects(effects pointproc.Effects, raised map[int64]map[string]bool, faulted map[int64]bool) {
	for _, a := range effects.Alarms {
		pid := a.PointID
		created, err := e.store.EnsureAlarm(&pid, a.Name, a.Description, a.Severity)
		if err != nil {
			logrus.Errorf("alarm %q on point %d: %s", a.Name, pid, err)
			continue
		}
		if created {
			alarmsRaised.Inc()
		}
		if raised[pid] == nil {
			raised[pid] = map[string]bool{}
		}
		raised[pid][a.Name] = true
	}
	for _, ev := range effects.Events {
		pid := ev.PointID
		if err := e.store.InsertEvent(&model.Event{
			PointID: &pid, EventType: ev.EventType, Description: ev.Description, Severity: ev.Severity,
		}); err != nil {
			logrus.Errorf("event on point %d: %s", pid, err)
		}
	}
	for _, l := range effects.Logs {
		pid := l.PointID
		if err := e.store.InsertLog(&model.Log{
			PointID: &pid, Source: l.Source, Value: l.Value, Message: l.Message,
		}); err != nil {
			logrus.Errorf("log on point %d: %s", pid, err)
		}
	}
	for _, f := range effects.Faults {
		pid := f.PointID
		if _, err := e.store.EnsureFault(f.DeviceID, &pid, f.Description); err != nil {
			logrus.Errorf("fault on device %d: %s", f.DeviceID, err)
		}
		faulted[f.DeviceID] = true
	}
}

// closeLapsed closes alarms and resolves faults that were raised last cycle
// but not this one.
func (e *Engine) closeLapsed(raised map[int64]map[string]bool, faulted map[int64]bool) {
	for pointID, names := range e.prevAlarms {
		for name := range names {
			if raised[pointID][name] {
				continue
			}
			pid := pointID
			if err := e.store.CloseAlarm(&pid, name); err != nil {
				logrus.Errorf("close alarm %q on point %d: %s", name, pid, err)
			}
		}
	}
	for deviceID := range e.prevFaults {
		if faulted[deviceID] {
			continue
		}
		if err := e.store.ResolveFaults(deviceID); err != nil {
			logrus.Errorf("resolve faults on device %d: %s", deviceID, err)
		}
	}
}

// runDiagrams is P2. Each program sees the same point snapshot; writes are
// flushed once the phase is over.
func (e *Engine) runDiagrams(ctx context.Context, table *pointTable) int {
	programs, err := e.store.ActiveFBDPrograms()
	if err != nil {
		logrus.Errorf("load fbd programs: %s", err)
		return 0
	}

	ran := 0
	for i := range programs {
		if ctx.Err() != nil {
			break
		}
		p := &programs[i]
		flat, err := e.executeDiagram(p, table)
		if err != nil {
			programRuns.WithLabelValues("fbd", "error").Inc()
			logrus.Errorf("fbd program %s: %s", p.Name, err)
			continue
		}
		programRuns.WithLabelValues("fbd", "ok").Inc()
		ran++

		encoded, err := json.Marshal(flat)
		if err != nil {
			logrus.Errorf("fbd program %s: encode runtime: %s", p.Name, err)
			continue
		}
		if string(encoded) != p.RuntimeValues {
			_ = e.retry("persist fbd runtime", func() error {
				return e.store.UpdateFBDRuntime(p.ID, string(encoded), p.RuntimeState)
			})
		}
	}
	e.flushWrites(table)
	return ran
}

// executeDiagram runs one program against the snapshot and returns the
// flattened output map.
func (e *Engine) executeDiagram(p *model.FBDProgram, table *pointTable) (map[string]interface{}, error) {
	diagram, err := fbd.ParseDiagram(p.DiagramJSON)
	if err != nil {
		return nil, err
	}
	bindDiagram(&diagram, p.Bindings)
	ex := fbd.NewExecutor(p.Name, diagram, table)
	return fbd.Flatten(ex.Cycle()), nil
}

// bindDiagram injects the node-to-point bindings into the I/O block params.
func bindDiagram(d *fbd.Diagram, bindings string) {
	if bindings == "" {
		return
	}
	var m map[string]int64
	if err := json.Unmarshal([]byte(bindings), &m); err != nil {
		logrus.Debugf("malformed bindings ignored: %s", err)
		return
	}
	for i := range d.Nodes {
		pointID, ok := m[d.Nodes[i].ID]
		if !ok {
			continue
		}
		if d.Nodes[i].Params == nil {
			d.Nodes[i].Params = map[string]interface{}{}
		}
		d.Nodes[i].Params["pointId"] = float64(pointID)
	}
}

// runScripts is P3.
func (e *Engine) runScripts(ctx context.Context, table *pointTable) int {
	programs, err := e.store.ActiveScriptPrograms()
	if err != nil {
		logrus.Errorf("load script programs: %s", err)
		return 0
	}

	ran := 0
	for i := range programs {
		if ctx.Err() != nil {
			break
		}
		p := &programs[i]
		bindings, err := e.store.Bindings(p.ID)
		if err != nil {
			logrus.Errorf("script %s: %s", p.Name, err)
			continue
		}

		res := script.Execute(p, bindings, table)
		programRuns.WithLabelValues("script", res.Status).Inc()
		ran++

		if res.Status != p.LastExecutionStatus || res.Log != p.LastExecutionLog {
			_ = e.retry("persist script status", func() error {
				return e.store.UpdateScriptExecution(p.ID, res.Status, res.Log, time.Now())
			})
		}
	}
	e.flushWrites(table)
	return ran
}

// flushWrites persists accumulated write intents and forwards register-backed
// ones to the field bus.
func (e *Engine) flushWrites(table *pointTable) {
	writes := table.takeWrites()
	if len(writes) == 0 {
		return
	}
	if err := e.retry("persist writes", func() error {
		return e.store.UpdateWriteValues(writes)
	}); err != nil {
		return
	}

	if e.driver == nil {
		return
	}
	regs, err := e.store.RegistersByID()
	if err != nil {
		logrus.Errorf("load registers for write: %s", err)
		return
	}
	for pointID, value := range writes {
		p, ok := table.points[pointID]
		if !ok || p.RegisterID == nil {
			continue
		}
		reg, ok := regs[*p.RegisterID]
		if !ok || !reg.IsWriteable {
			continue
		}
		if err := e.driver.WriteRegister(reg, value); err != nil {
			logrus.Errorf("write register %d: %s", reg.ID, err)
		}
	}
}

// retry runs a persistence operation, retrying once on failure.
func (e *Engine) retry(op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	storeRetries.Inc()
	logrus.Warnf("%s failed, retrying: %s", op, err)
	return fn()
}
