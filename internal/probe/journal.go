package probe

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/okian/epcforward/internal/adapters/audit"
)

// ListPending writes the journal entries that were received but never
// resolved and returns how many were listed.
func ListPending(ctx context.Context, store audit.Store, limit int, out io.Writer) (int, error) {
	entries, err := store.Pending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tPATH\tBYTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.ID, e.ReceivedAt.UTC().Format(time.RFC3339), e.Path, len(e.Payload))
	}
	fmt.Fprintf(tw, "\n%d pending\n", len(entries))
	return len(entries), tw.Flush()
}

// ShowEntry writes one journal entry including its raw payload, which is
// what an operator needs to replay it by hand.
func ShowEntry(ctx context.Context, store audit.Store, id string, out io.Writer) error {
	e, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get %s: %w", id, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ID:        %s\n", e.ID)
	fmt.Fprintf(&b, "Path:      %s\n", e.Path)
	fmt.Fprintf(&b, "Status:    %s\n", e.Status)
	fmt.Fprintf(&b, "Received:  %s\n", e.ReceivedAt.UTC().Format(time.RFC3339Nano))
	if e.ResolvedAt != nil {
		fmt.Fprintf(&b, "Resolved:  %s\n", e.ResolvedAt.UTC().Format(time.RFC3339Nano))
		fmt.Fprintf(&b, "Outcome:   %s (%s), upstream %d\n", e.Kind, e.Action, e.UpstreamStatus)
	}
	if e.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", e.Reference)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "Error:     %s\n", e.Error)
	}
	fmt.Fprintf(&b, "\nPayload:\n%s\n", prettyBody(e.Payload))

	_, err = io.WriteString(out, b.String())
	return err
}
