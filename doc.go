// Package courier is the application-facing facade over the email core:
// one Initialize call wires providers, rate limiting, delivery tracking,
// and the optional durable queue from configuration, and the typed send
// operations route through whichever pipeline is active.
//
// # Usage
//
//	cfg := courier.Config{
//	    Email: email.Config{
//	        FromAddress: "noreply@example.com",
//	        FromName:    "Example",
//	        AdminEmail:  "admin@example.com",
//	    },
//	    Resend: resend.Config{
//	        APIKey:      os.Getenv("RESEND_API_KEY"),
//	        SenderEmail: "noreply@example.com",
//	    },
//	    RedisURL: os.Getenv("REDIS_URL"),
//	}
//
//	c, err := courier.Initialize(ctx, cfg, courier.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer c.Shutdown(context.Background())
//
//	receipt, err := c.SendWelcomeEmail(ctx, email.WelcomeData{
//	    To:       "new@example.com",
//	    UserName: "Sam",
//	})
//
// Initialize is configure-once: the first call builds the shared instance,
// later calls return it unchanged. Default gives access to the shared
// instance from anywhere in the application.
//
// With QueueEnabled the typed operations enqueue durable jobs instead of
// sending inline, and the receipt carries the job reference rather than a
// delivery result.
package courier
