package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// Execute applies a command to the runtime.
// It never panics and never fails with a bare error: every failure is a *domain.Error,
// including use after Dispose (DISPOSED_ERROR). Actions may block until ctx is done.
func (b *Bridge) Execute(ctx context.Context, cmd domain.Command) (err error) {
	if b.Disposed() {
		return domain.NewDisposedError()
	}

	cmd = normalize(cmd)
	kind := kindOf(cmd)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Command panicked", "kind", kind, "panic", r)
			err = domain.NewExecutionError(fmt.Sprintf("command %s panicked", kind), fmt.Errorf("%v", r))
		}
		if b.hooks.OnCommand != nil {
			b.hooks.OnCommand(ctx, &domain.CommandEvent{
				Timestamp: start,
				Kind:      kind,
				Code:      domain.CodeOf(err),
				Duration:  time.Since(start),
			})
		}
	}()

	switch c := cmd.(type) {
	case domain.SetValue:
		if err := b.runtime.Set(c.Path, c.Value); err != nil {
			path, ok := domain.ValidationPath(err)
			if !ok {
				path = c.Path
			}
			return domain.NewValidationError(path, err)
		}
		return nil

	case domain.SetMany:
		if err := b.runtime.SetMany(c.Updates); err != nil {
			path, _ := domain.ValidationPath(err)
			return domain.NewValidationError(path, err)
		}
		return nil

	case domain.ExecuteAction:
		if err := b.runtime.Execute(ctx, c.ActionID, c.Input); err != nil {
			return domain.NewExecutionError(fmt.Sprintf("action %q failed", c.ActionID), err)
		}
		return nil

	default:
		return domain.NewExecutionError(fmt.Sprintf("unrecognized command %T", cmd), nil)
	}
}

// normalize dereferences pointers to the known command types.
// A nil pointer yields nil.
func normalize(cmd domain.Command) domain.Command {
	switch c := cmd.(type) {
	case *domain.SetValue:
		if c == nil {
			return nil
		}
		return *c
	case *domain.SetMany:
		if c == nil {
			return nil
		}
		return *c
	case *domain.ExecuteAction:
		if c == nil {
			return nil
		}
		return *c
	}
	return cmd
}

// kindOf returns the tag of a known command, or "" for anything else.
func kindOf(cmd domain.Command) domain.CommandKind {
	switch cmd.(type) {
	case domain.SetValue:
		return domain.KindSetValue
	case domain.SetMany:
		return domain.KindSetMany
	case domain.ExecuteAction:
		return domain.KindExecuteAction
	}
	return ""
}

// Focus moves input focus to path when the actuator supports it.
func (b *Bridge) Focus(path string) error {
	if b.Disposed() {
		return domain.NewDisposedError()
	}
	f, ok := b.actuator.(ports.Focuser)
	if !ok {
		return domain.NewAdapterError("actuator cannot focus", domain.ErrUnsupported)
	}
	f.Focus(path)
	return nil
}

// Navigate changes the current location when the actuator supports it.
func (b *Bridge) Navigate(to string, mode ports.NavigateMode) error {
	if b.Disposed() {
		return domain.NewDisposedError()
	}
	n, ok := b.actuator.(ports.Navigator)
	if !ok {
		return domain.NewAdapterError("actuator cannot navigate", domain.ErrUnsupported)
	}
	if mode == "" {
		mode = ports.NavigatePush
	}
	n.Navigate(to, mode)
	return nil
}

// APICall performs a remote call through the actuator when it supports it.
func (b *Bridge) APICall(ctx context.Context, req ports.APIRequest) (any, error) {
	if b.Disposed() {
		return nil, domain.NewDisposedError()
	}
	c, ok := b.actuator.(ports.APICaller)
	if !ok {
		return nil, domain.NewAdapterError("actuator cannot perform api calls", domain.ErrUnsupported)
	}
	resp, err := c.APICall(ctx, req)
	if err != nil {
		return nil, domain.NewAdapterError(fmt.Sprintf("%s %s failed", req.Method, req.URL), err)
	}
	return resp, nil
}
