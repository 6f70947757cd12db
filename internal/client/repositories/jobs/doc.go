// Package jobs persists the client's record of submitted conversion jobs.
//
// One row per job: the queue item it came from, the file and target
// format, the last known status and, once completed, the result. Rows
// outlive the in-memory queue so jobs can be listed and watched again after
// a restart.
//
//	repo := jobs.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, rec)
//	pending, _ := repo.ListPending(ctx)
package jobs
