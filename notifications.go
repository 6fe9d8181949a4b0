package iapkit

import "sync"

// NotificationKind discriminates the notifications the Manager emits.
type NotificationKind int

const (
	// NotificationPurchased is emitted when ownership of a product is
	// durably granted. ProductID carries the granted identifier.
	NotificationPurchased NotificationKind = iota
	// NotificationPurchaseFailed is emitted when a purchase fails,
	// including user cancellation. It carries no payload.
	NotificationPurchaseFailed
)

// Notification is an observable purchase event.
type Notification struct {
	Kind      NotificationKind
	ProductID ProductID // set for NotificationPurchased
}

// subscriberBuffer is the live-delivery headroom for each subscription.
// A subscriber that falls further behind than this loses live
// notifications rather than blocking the dispatch loop.
const subscriberBuffer = 64

// notificationBus fans notifications out to subscribers. The full history
// is replayed to late subscribers before live delivery begins, so UI layers
// that attach after a purchase completes still observe it.
type notificationBus struct {
	mu      sync.Mutex
	history []Notification
	subs    []chan Notification
}

func newNotificationBus() *notificationBus {
	return &notificationBus{}
}

// Subscribe returns a channel that receives the emitted history in order,
// followed by live notifications.
func (b *notificationBus) Subscribe() <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, len(b.history)+subscriberBuffer)
	for _, n := range b.history {
		ch <- n
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish records n and delivers it to current subscribers.
func (b *notificationBus) Publish(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, n)
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			// Subscriber is not draining; dropping beats stalling the
			// dispatch loop. The history replay on re-subscribe recovers
			// the full sequence.
		}
	}
}
