// Package remoteevent provides the cross-process boolean latch used to learn
// when asynchronous hardware work (an exposure, an autofocus run, a filter
// move) has finished, even when that hardware is driven by another process.
//
// An Event is addressed by a URI and one of three recognised types. It owns
// no state: every call is forwarded to a Transport. Two transports exist:
//
//   - LocalTransport keeps latches in memory, for drivers in this process
//   - MQTTTransport mirrors latches on retained topics
//     (huntsman/event/{uri}/{type}) so driver processes can set them
//
// WaitForAll is the AND barrier the controller blocks on while cameras work:
//
//	events, _ := observatory.Observe(ctx)
//	err := remoteevent.WaitForAll(ctx, events, 15*time.Second, func(elapsed time.Duration, pending []string) {
//	    log.Info("waiting for cameras", "elapsed", elapsed, "pending", pending)
//	})
package remoteevent
