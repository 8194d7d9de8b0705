package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/epcforward/internal/adapters/upstream"
	"github.com/okian/epcforward/pkg/logger"
)

const banner = "================================================"

// Result is the outcome of one probe submission.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
	Latency     time.Duration
	Err         error
	Verdict     Verdict
}

// Report summarises a probe run.
type Report struct {
	Sent      int
	ByVerdict map[Verdict]int
	Duration  time.Duration
	Results   []Result
}

// OK reports whether every submission triggered the flow.
func (r *Report) OK() bool {
	return r.Sent > 0 && r.ByVerdict[VerdictTriggered] == r.Sent
}

// Run sends cfg.Count submissions with cfg.Workers concurrent senders and
// writes a diagnosis to out.
func Run(ctx context.Context, cfg *Config, out io.Writer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("probe")
	log.Info(ctx, "starting probe",
		logger.String("target", cfg.Target),
		logger.Int("count", cfg.Count),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := upstream.NewClient(cfg.URL, upstream.WithTimeout(cfg.Timeout))
	start := time.Now()
	results := make([]Result, cfg.Count)

	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = send(ctx, client, Payload(cfg, time.Now()))
				if cfg.Verbose {
					log.Info(ctx, "probe response",
						logger.Int("n", i+1),
						logger.Int("status", results[i].Status),
						logger.String("verdict", string(results[i].Verdict)),
						logger.Duration("latency", results[i].Latency),
					)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Count; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	report := &Report{ByVerdict: make(map[Verdict]int), Duration: time.Since(start)}
	for _, r := range results {
		if r.Verdict == "" {
			// never sent, cancelled
			continue
		}
		report.Sent++
		report.ByVerdict[r.Verdict]++
		report.Results = append(report.Results, r)
	}

	if err := WriteReport(out, cfg, report); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	log.Info(ctx, "probe finished",
		logger.Int("sent", report.Sent),
		logger.Int("triggered", report.ByVerdict[VerdictTriggered]),
		logger.Duration("duration", report.Duration),
	)
	return report, ctx.Err()
}

func send(ctx context.Context, client *upstream.Client, payload any) Result {
	start := time.Now()
	resp, err := client.Post(ctx, payload)
	r := Result{Latency: time.Since(start), Err: err}
	if err == nil {
		r.Status = resp.Status
		r.ContentType = resp.ContentType
		r.Body = resp.Body
	}
	r.Verdict = Diagnose(r.Status)
	return r
}

// WriteReport prints the first response in full and a verdict summary.
func WriteReport(out io.Writer, cfg *Config, report *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nSUBMISSION PROBE (%s)\n%s\n\n", banner, cfg.Target, banner)

	if len(report.Results) > 0 {
		first := report.Results[0]
		if first.Err != nil {
			fmt.Fprintf(&b, "Request Error: %v\n\n", first.Err)
		} else {
			fmt.Fprintf(&b, "Response Status: %d\nContent-Type: %s\n\nResponse Body:\n%s\n\n",
				first.Status, first.ContentType, prettyBody(first.Body))
		}
	}

	fmt.Fprintf(&b, "%s\nDIAGNOSIS:\n%s\n\n", banner, banner)
	verdicts := make([]string, 0, len(report.ByVerdict))
	for v := range report.ByVerdict {
		verdicts = append(verdicts, string(v))
	}
	sort.Strings(verdicts)
	for _, v := range verdicts {
		verdict := Verdict(v)
		fmt.Fprintf(&b, "%s: %d/%d\n", verdict, report.ByVerdict[verdict], report.Sent)
		for _, h := range verdict.Hints() {
			fmt.Fprintf(&b, "  %s\n", h)
		}
	}
	fmt.Fprintf(&b, "\nDuration: %s\n%s\n", report.Duration.Round(time.Millisecond), banner)

	_, err := io.WriteString(out, b.String())
	return err
}

func prettyBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err == nil {
		return buf.String()
	}
	return string(body)
}
