package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "slotbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// slowCommand is the duration above which a successful command is logged at
// info. /check usually crosses it since it drives the browser.
const slowCommand = 2 * time.Second

// Chain wraps h so that m[0] is the outermost middleware.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// MWTimeout bounds a command; zero leaves ctx untouched.
func MWTimeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// MWPanicRecover turns a handler panic into an error for the dispatcher.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				requestLogger(log, req).Error("command panicked",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("command /%s panicked: %v", commandName(req), r)
			}()
			return next(ctx, req)
		}
	}
}

// MWRequestLog logs one line per command with its chat and duration.
func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			l := requestLogger(log, req)
			fields := []logx.Field{logx.String("cmd", commandName(req)), logx.Duration("took", took)}
			if req != nil {
				fields = append(fields, logx.Int64("chat_id", req.Chat.ChatID))
			}
			switch {
			case err != nil:
				l.Warn("command failed", append(fields, logx.Err(err))...)
			case took >= slowCommand:
				l.Info("command done", fields...)
			default:
				l.Debug("command done", fields...)
			}
			return err
		}
	}
}

func requestLogger(log logx.Logger, req *Request) logx.Logger {
	if req != nil && !req.Logger.IsZero() {
		return req.Logger
	}
	return log
}

func commandName(req *Request) string {
	if req == nil {
		return ""
	}
	return req.Command
}
