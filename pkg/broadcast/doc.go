// Package broadcast fans typed messages out to in-process subscribers.
//
//	b := broadcast.NewMemoryBroadcaster[Notice](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx) // removed when ctx is done
//	go func() {
//		for msg := range sub.Receive() {
//			handle(msg.Data)
//		}
//	}()
//
//	_ = b.Broadcast(ctx, broadcast.Message[Notice]{Data: n})
//
// Publishing never blocks. A subscriber whose buffer is full misses the
// message and is unsubscribed, which closes its channel; Dropped counts
// these removals. Consumers that need every event should read the
// authoritative store instead.
package broadcast
