package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smarty-bms/smarty/pkgs/config"
	"github.com/smarty-bms/smarty/pkgs/engine"
	"github.com/smarty-bms/smarty/pkgs/fieldio"
	"github.com/smarty-bms/smarty/pkgs/httpapi"
	"github.com/smarty-bms/smarty/pkgs/output"
	"github.com/smarty-bms/smarty/pkgs/script"
	"github.com/smarty-bms/smarty/pkgs/store"
)

type SmartyApp struct {
	Config *config.Configuration

	store  *store.Store
	engine *engine.Engine

	// runtime parameters
	Debug bool
}

// Initialize is running after parsing the arguments, so we know how to configure the app
func (app *SmartyApp) Initialize() error {
	// logging
	if app.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// configuration
	logrus.Debug("Reading configuration files")
	cfg, cfgErr := config.NewConfig()
	app.Config = cfg
	if cfgErr != nil {
		return fmt.Errorf("cannot initialize app: %s", cfgErr)
	}
	return nil
}

func (app *SmartyApp) initializeRuntime() error {
	logrus.Debug("Opening configuration store")
	s, err := store.Open(app.Config.Database.DSN)
	if err != nil {
		return fmt.Errorf("cannot initialize app: %s", err)
	}
	app.store = s

	var printer output.Printer = output.LogrusPrinter{}
	if !app.Debug {
		printer = output.ConsolePrinter{}
	}
	app.engine = engine.New(s, fieldio.NewLoopbackDriver(), printer, app.Config)
	return nil
}

// RunAction starts the scheduler and the HTTP surface and blocks until the
// context is cancelled.
func (app *SmartyApp) RunAction(ctx context.Context) error {
	if err := app.initializeRuntime(); err != nil {
		return err
	}
	defer func() {
		if err := app.store.Close(); err != nil {
			logrus.Errorf("store close: %s", err)
		}
	}()

	server := httpapi.NewServer(app.store, app.engine)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.engine.Run(gctx)
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, app.Config.HTTP.Listen)
	})
	return g.Wait()
}

// CheckScriptAction compiles a script source without touching the store and
// prints the validation verdict. A non-nil error means the source is invalid.
func (app *SmartyApp) CheckScriptAction(source string) error {
	res := script.Validate(source)
	fmt.Println(res.LogLine())
	if res.Status != "valid" {
		return fmt.Errorf("script is %s", res.Status)
	}
	for _, d := range res.Declarations {
		logrus.Debugf("declared %s %s", d.Type, d.Name)
	}
	return nil
}
