// Package subscription provides cancellation tokens for push-based streams.
// A Subscription moves one way from active to disposed; a Composite owns
// children and disposes them together with itself.
package subscription
