// Package fieldio abstracts the protocol drivers that move raw register
// values between the engine and physical devices. The engine only ever
// talks to the Driver interface; concrete Modbus/BACnet/MQTT transports
// plug in behind it.
package fieldio

import (
	"sync"
	"time"

	"github.com/smarty-bms/smarty/pkgs/model"
)

// Driver reads and writes raw register values on the field bus.
type Driver interface {
	// ReadRegister polls one register and returns its raw textual value
	// together with the resulting error status.
	ReadRegister(reg model.Register, options ...reqOption) (string, model.ErrorStatus, error)
	// WriteRegister pushes a raw value to an output register.
	WriteRegister(reg model.Register, value string, options ...reqOption) error
	CleanUp() error
}

type reqOption func(*requestContext) error

type requestContext struct {
	timeout time.Duration
	retries uint8
}

func Timeout(timeout time.Duration) func(*requestContext) error {
	return func(ctx *requestContext) error {
		ctx.timeout = timeout
		return nil
	}
}

func Retries(retries uint8) func(*requestContext) error {
	return func(ctx *requestContext) error {
		ctx.retries = retries
		return nil
	}
}

func applyOptionsToCtx(ctx *requestContext, options []reqOption) {
	for _, option := range options {
		option(ctx)
	}
}

// LoopbackDriver is the in-process driver used when no field bus is
// configured: reads echo the register's stored value, writes are retained
// and served back by subsequent reads.
type LoopbackDriver struct {
	mu     sync.Mutex
	values map[int64]string
}

func NewLoopbackDriver() *LoopbackDriver {
	return &LoopbackDriver{values: map[int64]string{}}
}

func (d *LoopbackDriver) ReadRegister(reg model.Register, options ...reqOption) (string, model.ErrorStatus, error) {
	ctx := requestContext{timeout: time.Second}
	applyOptionsToCtx(&ctx, options)

	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.values[reg.ID]; ok {
		return v, model.StatusOK, nil
	}
	return reg.CurrentValue, model.StatusOK, nil
}

func (d *LoopbackDriver) WriteRegister(reg model.Register, value string, options ...reqOption) error {
	ctx := requestContext{timeout: time.Second}
	applyOptionsToCtx(&ctx, options)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[reg.ID] = value
	return nil
}

func (d *LoopbackDriver) CleanUp() error {
	return nil
}
