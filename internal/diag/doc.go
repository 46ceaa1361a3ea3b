// Package diag defines the diagnostic model shared by the resolver, the
// rewrite context, the passes and the pipeline driver.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity: Info, Warning or Error (severity.go).
//   - Code: compact numeric identifier with a stable string form such as
//     "SEM3003" or "ICE9001" (codes.go).
//   - Message: short human oriented text.
//   - Primary: the source.Span the finding points at.
//   - Notes: optional secondary spans with extra context.
//
// # Emitting diagnostics
//
// Producers emit through a Reporter. ReportError / ReportInfo return a
// ReportBuilder which accepts notes before Emit. BagReporter collects
// diagnostics into a Bag that supports limits, sorting and merging.
//
// Failures that abort a phase travel as *Error, which wraps one or more
// diagnostics into an ordinary Go error. FromError recovers it from a wrapped
// chain. Codes in the ICE range mark internal compiler errors: a pass or the
// rewrite context produced something that should not happen.
//
// FormatShort renders diagnostics in the one-line form used by the CLI and
// the golden tests.
package diag
