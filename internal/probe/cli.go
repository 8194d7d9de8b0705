package probe

import "io"

// ShowHelp prints usage information for the probe tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `EPC Submission Probe
====================

Sends sample partner applications to the workflow trigger or to a running
forwarder and diagnoses the responses. Can also list the forwarder's audit
journal entries that still need manual replay.

Usage:
  go run ./cmd/probe [options]

Options:
  -url string
        Trigger URL or forwarder submit URL (default $EPC_UPSTREAM_URL)
  -target string
        upstream (canonical payload) or forwarder (raw form) (default "upstream")
  -count int
        Number of submissions to send (default 1)
  -workers int
        Number of concurrent senders (default 4)
  -timeout duration
        Per-request timeout (default 30s)
  -source string
        Source stamped on canonical payloads (default "debug-test")
  -verbose
        Log every response
  -pending
        List audit journal entries that were received but never resolved
  -entry string
        Show one audit journal entry, including its raw payload
  -limit int
        Maximum entries listed by -pending, 0 for all (default 50)
  -help
        Show this help message

Examples:
  # Check the trigger signature directly
  go run ./cmd/probe

  # Find submissions the forwarder never finished (uses EPC_* settings)
  go run ./cmd/probe -pending

  # Exercise a local forwarder
  go run ./cmd/probe -target forwarder -url http://localhost:8080/api/submit -count 20
`)
}
