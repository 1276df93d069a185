// Package notifications delivers pipeline events to ntfy.
//
// Only events a person would act on are published: a finished restore pass
// and an upload that failed without a durable record to retry from. When no
// topic is configured NewService returns a no-op so callers never branch on
// whether alerts are enabled.
package notifications
