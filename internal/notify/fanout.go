package notify

import "context"

// Sink receives change events.
type Sink interface {
	Notify(ctx context.Context, event string, payload any)
}

// Fanout delivers each event to every sink in order.
type Fanout []Sink

// Notify implements Sink.
func (f Fanout) Notify(ctx context.Context, event string, payload any) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, event, payload)
		}
	}
}
