// Package rx is a minimal push-based stream protocol built on the
// schedulers and coordination packages.
//
// An Observable produces Notifications into a Subscriber: any number of
// OnNext calls followed by at most one OnError or OnCompleted. Operators
// such as ObserveOn and SubscribeOn move delivery or production onto a
// Worker chosen by a coordination.Coordination.
//
// Multicasting is provided by Subject, Connectable (Publish, Replay) and
// RefCount. Blocking bridges a stream back into ordinary control flow:
//
//	f := coordination.NewFactory()
//	defer f.Close()
//	vals, err := rx.Range(1, 5).
//		ObserveOn(f.ObserveOnNewThread()).
//		AsBlocking().
//		ToSlice(ctx)
package rx
