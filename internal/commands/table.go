// Package commands maps chat commands to handlers.
//
// The command table is static: Table builds it once at startup from explicit
// dependencies, and the Dispatcher routes incoming messages against it.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbot/internal/subscribers"
	"slotbot/internal/transport"
	"slotbot/internal/watch"
	logx "slotbot/pkg/logx"
)

// Command is one table entry.
type Command struct {
	Name        string
	Description string
	// Hidden commands are routed but left out of help and the menu.
	Hidden  bool
	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type Request struct {
	Update  transport.Update
	Chat    transport.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter transport.Adapter
	Logger  logx.Logger
}

// Reply sends text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &transport.SendOptions{DisablePreview: true})
	return err
}

// Watcher is the slice of the scheduler the handlers need.
type Watcher interface {
	CheckNow(ctx context.Context) (watch.Result, error)
	Snapshot() watch.Snapshot
}

// Deps are the collaborators handed to every handler.
type Deps struct {
	Watch       Watcher
	Subscribers *subscribers.Registry
	TargetURL   string
}

const checkTimeout = 5 * time.Minute

const (
	msgCheckFailed    = "Check failed, please try again later."
	msgNoAppointments = "No appointments available"
	msgSubscribed     = "Subscribed! You will get a message whenever new appointments open."
	msgAlreadySub     = "You are already subscribed."
	msgUnsubscribed   = "Unsubscribed. You will no longer receive updates."
	msgNotSubscribed  = "You are not subscribed."
)

// Table returns the bot's command table in menu order.
func Table(d Deps) []Command {
	cmds := []Command{
		{
			Name:        "check",
			Description: "Checks, right now, whether there are appointments available",
			Timeout:     checkTimeout,
			Handle:      d.check,
		},
		{
			Name:        "subscribe",
			Description: "Get a message whenever new appointments open",
			Handle:      d.subscribe,
		},
		{
			Name:        "unsubscribe",
			Description: "Stop receiving appointment updates",
			Handle:      d.unsubscribe,
		},
		{
			Name:        "status",
			Description: "Show watcher status",
			Handle:      d.status,
		},
	}
	start := Command{Name: "start", Hidden: true}
	help := Command{Name: "help", Description: "List available commands"}
	start.Handle = func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, welcomeText(append(cmds, help)))
	}
	help.Handle = func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, helpText(append(cmds, help)))
	}
	return append([]Command{start}, append(cmds, help)...)
}

func welcomeText(cmds []Command) string {
	return "Welcome! This bot sends you an update whenever a new appointment at the " +
		"embassy opens. Below is a list of useful commands.\n" + commandList(cmds)
}

func helpText(cmds []Command) string {
	return "Available commands:\n" + commandList(cmds)
}

func commandList(cmds []Command) string {
	var b strings.Builder
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "/%s: %s", c.Name, c.Description)
	}
	return b.String()
}

func (d Deps) check(ctx context.Context, req *Request) error {
	res, err := d.Watch.CheckNow(ctx)
	if err != nil {
		_ = req.Reply(ctx, msgCheckFailed)
		return err
	}
	if !res.Available {
		return req.Reply(ctx, msgNoAppointments)
	}
	return req.Reply(ctx, watch.ComposeMessage(res.Summaries, d.TargetURL))
}

func (d Deps) subscribe(ctx context.Context, req *Request) error {
	if !d.Subscribers.Subscribe(subscribers.ID(req.Chat.ChatID)) {
		return req.Reply(ctx, msgAlreadySub)
	}
	req.Logger.Info("subscriber added", logx.Int("subscribers", d.Subscribers.Len()))
	return req.Reply(ctx, msgSubscribed)
}

func (d Deps) unsubscribe(ctx context.Context, req *Request) error {
	err := d.Subscribers.Unsubscribe(subscribers.ID(req.Chat.ChatID))
	if errors.Is(err, subscribers.ErrNotSubscribed) {
		return req.Reply(ctx, msgNotSubscribed)
	}
	if err != nil {
		return err
	}
	req.Logger.Info("subscriber removed", logx.Int("subscribers", d.Subscribers.Len()))
	return req.Reply(ctx, msgUnsubscribed)
}

func (d Deps) status(ctx context.Context, req *Request) error {
	snap := d.Watch.Snapshot()
	subscribed := d.Subscribers.Has(subscribers.ID(req.Chat.ChatID))
	return req.Reply(ctx, statusText(snap, subscribed, time.Now()))
}

func statusText(snap watch.Snapshot, subscribed bool, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subscribed: %s\n", yesNo(subscribed))
	fmt.Fprintf(&b, "Subscribers: %d\n", snap.Subscribers)
	fmt.Fprintf(&b, "Check interval: %s\n", snap.Every)
	if snap.Running && !snap.Next.IsZero() {
		fmt.Fprintf(&b, "Next check: in %s\n", snap.Next.Sub(now).Round(time.Second))
	}
	if snap.InProgress {
		b.WriteString("A check is running now\n")
	}

	if len(snap.History) == 0 {
		b.WriteString("Last check: none yet")
		return b.String()
	}
	last := snap.History[len(snap.History)-1]
	ago := now.Sub(last.Finished).Round(time.Second)
	switch {
	case last.Skipped != "":
		fmt.Fprintf(&b, "Last check: %s ago, skipped (%s)", ago, last.Skipped)
	case last.Err != nil:
		fmt.Fprintf(&b, "Last check: %s ago, failed", ago)
	case last.Available:
		fmt.Fprintf(&b, "Last check: %s ago, appointments available on %d date(s)", ago, len(last.Summaries))
	default:
		fmt.Fprintf(&b, "Last check: %s ago, no appointments", ago)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
