// Package app wires the slot watcher together and owns its lifecycle.
package app

import (
	"context"
	"strings"
	"time"

	"slotbot/internal/browser"
	"slotbot/internal/commands"
	"slotbot/internal/config"
	"slotbot/internal/notifier"
	"slotbot/internal/runtime/supervisor"
	"slotbot/internal/slots"
	"slotbot/internal/subscribers"
	"slotbot/internal/transport"
	"slotbot/internal/transport/telegram"
	"slotbot/internal/watch"
	logx "slotbot/pkg/logx"
)

const (
	updatesBuffer = 256
	stopTimeout   = 10 * time.Second
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter transport.Adapter
	factory browser.Factory
	subs    *subscribers.Registry
	notif   *notifier.Service
	watch   *watch.Service
	disp    *commands.Dispatcher

	updates chan transport.Update
}

// Deps lets callers replace the external collaborators. Zero fields are
// built from the config.
type Deps struct {
	Adapter transport.Adapter
	Factory browser.Factory
	// Sleep overrides the page render waits.
	Sleep slots.SleepFunc
}

// New loads the config at cfgPath (empty means env only) and builds the
// production app.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.Nop())
	if _, err := cfgm.Load(); err != nil {
		return nil, err
	}
	return NewWithDeps(cfgm, Deps{})
}

func NewWithDeps(cfgm *config.Manager, d Deps) (*App, error) {
	cfg := cfgm.Get()

	logSvc, log := logx.New(cfg.LoggingSettings())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	ad := d.Adapter
	if ad == nil {
		tc, err := cfg.TelegramSettings()
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(tc, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		ad = tg
	}

	factory := d.Factory
	if factory == nil {
		bc, err := cfg.BrowserSettings()
		if err != nil {
			return nil, err
		}
		factory = browser.NewRemoteFactory(bc, log.With(logx.String("comp", "browser")))
	}

	nc, err := cfg.NotifierSettings()
	if err != nil {
		return nil, err
	}
	notif := notifier.New(nc, ad, log.With(logx.String("comp", "notifier")))

	probe := slots.NewProbe(log.With(logx.String("comp", "probe")))
	extract := slots.NewExtractor(log.With(logx.String("comp", "extract")))
	if d.Sleep != nil {
		probe.Sleep = d.Sleep
		extract.Sleep = d.Sleep
	}

	subs := subscribers.NewRegistry()
	w := watch.New(watch.Config{TargetURL: cfg.TargetURL}, factory, probe, extract, subs, notif, log.With(logx.String("comp", "watch")))

	table := commands.Table(commands.Deps{Watch: w, Subscribers: subs, TargetURL: cfg.TargetURL})
	disp := commands.NewDispatcher(table, ad, log.With(logx.String("comp", "commands")))

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		adapter: ad,
		factory: factory,
		subs:    subs,
		notif:   notif,
		watch:   w,
		disp:    disp,
		updates: make(chan transport.Update, updatesBuffer),
	}, nil
}

func (a *App) Watch() *watch.Service { return a.watch }

func (a *App) Subscribers() *subscribers.Registry { return a.subs }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}
	a.notif.Start(runCtx)
	if err := a.watch.Start(runCtx); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.disp.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("commands.menu", a.disp.UpdateMenu)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("config.reload", a.reloadLoop)

	a.log.Info("slotbot started", logx.String("url", a.cfgm.Get().TargetURL))
	return nil
}

// Stop shuts components down in dependency order: no new cycles, no new
// updates, drain handlers, then flush pending notifications.
func (a *App) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stopTimeout)
		defer cancel()
	}
	a.log.Info("stopping")

	a.watch.Stop(ctx)
	_ = a.adapter.Stop(ctx)
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	a.notif.Stop(ctx)
	if c, ok := a.factory.(interface{ Close() error }); ok {
		if cerr := c.Close(); cerr != nil {
			a.log.Warn("browser driver close failed", logx.Err(cerr))
		}
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}

// reloadLoop applies hot-reloadable settings (logging, notifier pacing) and
// warns about the rest.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config changed", fields...)

	a.logs.Apply(next.LoggingSettings())
	if nc, err := next.NotifierSettings(); err == nil {
		a.notif.Apply(nc)
	}
	if config.RequiresRestart(sections) {
		a.log.Warn("some config changes take effect only after restart", logx.Strs("sections", sections))
	}
}
