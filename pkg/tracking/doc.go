// Package tracking records send outcomes so delivery status can be looked
// up by message id.
//
// Tracking is strictly best-effort: Record never returns an error to the
// send path. Store failures are logged and swallowed, because a tracking
// outage must never block or fail an email. Records expire after a fixed
// retention window (7 days).
//
// External webhook consumers (delivery, open, click, bounce events) update
// records out of band; this package only creates them at send time and
// reads them back.
package tracking
