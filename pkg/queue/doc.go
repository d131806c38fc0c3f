// Package queue provides a durable, Redis-backed email job queue with
// priorities, delayed execution, per-job retry with exponential backoff,
// and bounded completed/failed history.
//
// Jobs are enqueued as typed email operations (contact, welcome, password
// reset, newsletter, notification) and processed by a bounded worker pool
// that dispatches to an email.Service. Every state transition lives in
// Redis, so jobs survive process restarts and multiple processes can share
// one queue.
//
// # Usage
//
//	q, err := queue.New(svc, redisClient,
//	    queue.WithLogger(log),
//	    queue.WithConcurrency(5),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := q.Start(ctx); err != nil {
//	    return err
//	}
//	defer q.Stop(context.Background())
//
//	ref, err := q.EnqueueWelcome(ctx, email.WelcomeData{
//	    To:       "new@example.com",
//	    UserName: "Sam",
//	})
//
// Higher-priority jobs run first; within a priority, enqueue order is
// preserved. Failed jobs are retried with exponential backoff up to their
// attempt budget, then parked in a failed list where they can be inspected
// and retried by id.
package queue
