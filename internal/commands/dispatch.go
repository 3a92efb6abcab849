package commands

import (
	"context"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotbot/internal/transport"
	logx "slotbot/pkg/logx"
)

const (
	msgUnknownCommand = "Unknown command. Try /help"
	msgBusy           = "Busy, try again in a moment."

	defaultJobQueue = 64
	menuTimeout     = 5 * time.Second
)

// Dispatcher routes incoming messages to command handlers on a bounded
// worker pool.
type Dispatcher struct {
	log     logx.Logger
	adapter transport.Adapter

	byName map[string]Command
	table  []Command

	workers int
	jobs    chan func()
	mu      sync.Mutex
	closed  bool
}

func NewDispatcher(table []Command, adapter transport.Adapter, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	byName := make(map[string]Command, len(table))
	for _, c := range table {
		if c.Name == "" || c.Handle == nil {
			continue
		}
		byName[strings.ToLower(c.Name)] = c
	}
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	return &Dispatcher{
		log:     log,
		adapter: adapter,
		byName:  byName,
		table:   append([]Command(nil), table...),
		workers: workers,
		jobs:    make(chan func(), defaultJobQueue),
	}
}

// UpdateMenu publishes the visible commands to the platform menu when the
// adapter supports it. Failures are logged only.
func (d *Dispatcher) UpdateMenu(ctx context.Context) {
	up, ok := d.adapter.(transport.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := make([]transport.BotCommand, 0, len(d.table))
	for _, c := range d.table {
		if c.Hidden || c.Handle == nil {
			continue
		}
		menu = append(menu, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	cctx, cancel := context.WithTimeout(ctx, menuTimeout)
	defer cancel()
	if err := up.UpdateMenuCommands(cctx, menu); err != nil {
		d.log.Warn("command menu update failed", logx.Err(err))
	}
}

// DispatchLoop consumes updates until ctx is done or updates is closed, then
// waits briefly for in-flight handlers.
func (d *Dispatcher) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	var wg sync.WaitGroup
	wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			d.worker(ctx, idx)
		}()
	}
	d.log.Info("command dispatcher started", logx.Int("workers", d.workers), logx.Int("job_queue_cap", cap(d.jobs)))

	defer func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			d.log.Warn("command workers still busy at shutdown")
		}
		d.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			d.route(ctx, up)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, idx int) {
	for job := range d.jobs {
		if ctx.Err() != nil {
			continue
		}
		// Middleware already recovers handler panics; this keeps the worker alive
		// if something outside the chain blows up.
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			job()
		}()
	}
}

func (d *Dispatcher) route(ctx context.Context, up transport.Update) {
	if up.Kind != transport.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chat := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := d.byName[name]
	if !ok {
		_, _ = d.adapter.SendText(ctx, chat, msgUnknownCommand, nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: d.adapter,
		Logger: d.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(d.log),
		MWRequestLog(d.log),
		MWTimeout(cmd.Timeout),
	)
	if !d.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = d.adapter.SendText(ctx, chat, msgBusy, nil)
	}
}

func (d *Dispatcher) tryEnqueue(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- fn:
		return true
	default:
		return false
	}
}

// parseCommand splits "/name@bot arg1 arg2" into its lowercased name and args.
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), parts[1:], true
}

func newReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
