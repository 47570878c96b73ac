// Package notify delivers rep-facing alerts for Spark engagement.
//
// The Dispatcher implements tracker.Notifier. Every notification lands in the
// owner's in-app inbox; email (AWS SES) and push (webhook) are added per the
// owner's preferences, priority and quiet hours.
package notify
