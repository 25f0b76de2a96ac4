// Package notifications forwards translation notices to an ntfy topic.
//
// Service implements scheduler.Notifier. Delivery runs in the background so
// the scheduler never waits on the network; failures are logged and dropped.
// When no topic is configured the service is disabled and Notify is a no-op.
package notifications
