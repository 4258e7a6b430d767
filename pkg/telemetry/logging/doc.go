// Package logging builds the gateway's structured logger.
//
// New returns a plain *slog.Logger so that every package can accept a
// *slog.Logger and fall back to slog.Default() when none is injected. The
// handler chain adds two behaviors on top of the JSON or text handler:
//
//   - PII redaction of messages, string attributes and errors (API keys,
//     bearer tokens, emails, SSNs, card numbers, phone numbers, IPs) plus
//     masking of attributes whose key looks sensitive
//   - context fields (request_id, evaluation_id, rule_set, rule, trace_id)
//     added to records logged with the *Context methods
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithEvaluationID(ctx, id)
//	logger.InfoContext(ctx, "Rule denied request", "rule", name)
//
// # PII Redaction
//
//   - API keys: sk-abc123xyz → sk-***
//   - Emails: user@example.com → ***@example.com
//   - SSN: 123-45-6789 → ***-**-****
//   - IP addresses: 192.168.1.100 → 192.*.*.*
//   - Sensitive keys: "authorization", "Bearer abcdefgh" → "Bear***"
package logging
