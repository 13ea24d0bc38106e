package notifier

import "context"

// NoopNotifier drops every message. Used when no bot token is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(_ context.Context, _ string) error                  { return nil }
func (NoopNotifier) SendWithRetry(_ context.Context, _ string, _ int) error { return nil }
