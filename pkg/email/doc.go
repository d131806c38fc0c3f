// Package email implements the transactional email dispatch pipeline:
// message validation, per-recipient rate limiting, preview mode, provider
// fallback with bounded retries, and best-effort delivery tracking.
//
// The Service is the orchestrator. It owns an ordered list of Provider
// implementations (primary first, optional fallback second) and exposes
// typed operations for the emails the application sends: contact-form
// notifications, welcome emails, password resets, and newsletters. All of
// them funnel through SendEmail, the generic path.
//
// Providers live in subpackages (resend, smtp) and implement the narrow
// Provider interface; adding a transport means adding one implementation,
// not touching the orchestrator.
//
// Construction is explicit and injectable:
//
//	svc, err := email.NewService(email.Config{
//	    FromAddress: "noreply@example.com",
//	    FromName:    "Example",
//	    AdminEmail:  "admin@example.com",
//	}, email.WithProviders(primary, fallback), email.WithLogger(log))
//
// Applications that want a process-wide instance use the root courier
// package, which wraps Service in a configure-once facade.
package email
