// Package audit keeps a queryable log of authorize decisions.
//
// Every decision the server makes can be written as a Record: which rule set
// generation decided, the action, the deciding rule and reason, the chosen
// backend and any evaluation errors, along with the request line and LLM
// summary that produced it.
//
// # Storage
//
// Two backends implement Storage:
//
//   - SQLiteStorage: durable, with either the pure Go modernc.org/sqlite
//     driver ("sqlite", the default) or the cgo github.com/mattn/go-sqlite3
//     driver ("sqlite3")
//   - MemoryStorage: in process, for tests and throwaway deployments
//
// Open selects one from configuration:
//
//	storage, err := audit.Open(&cfg.Audit, logger)
//	if err != nil {
//		return err
//	}
//	defer storage.Close()
//
// # Recording
//
// A Recorder buffers records and writes them from a single background
// goroutine. Record never blocks; when the buffer is full the record is
// dropped and counted in the audit_records_total{result="dropped"} metric.
//
//	recorder := audit.NewRecorder(storage, &cfg.Audit, logger, audit.WithMetrics(collector))
//	defer recorder.Close()
//
//	rec := audit.FromSnapshot(snap)
//	rec.Decision, rec.Rule = "deny", "deny-blocked-team"
//	recorder.Record(rec)
//
// Close flushes the buffer before returning.
//
// # Retention
//
// A Pruner deletes records older than RetentionConfig.Days and trims the log
// to MaxRecords, oldest first. Run schedules it with a cron expression:
//
//	pruner := audit.NewPruner(storage, &cfg.Audit.Retention, logger, collector)
//	go pruner.Run(ctx) // "0 3 * * *" prunes daily at 3 AM
package audit
