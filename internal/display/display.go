// Package display renders a completed (or failed) apply run's outcome,
// following the same log.Info-driven boxed-summary convention the
// teacher's display package uses for its own build summaries.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/open-edge-platform/otapatch/internal/logger"
)

// Result is the outcome of one apply invocation, shaped for both the
// text summary box and the --format json payload.
type Result struct {
	Source   string        `json:"source"`
	Target   string        `json:"target"`
	Digest   string        `json:"targetDigest"`
	Size     int64         `json:"targetSize"`
	Duration time.Duration `json:"durationNanos"`
	Err      string        `json:"error,omitempty"`
}

// PrintSummary writes a highlighted box reporting success or failure, in
// the teacher's boxed-banner style.
func PrintSummary(r Result) {
	log := logger.Logger()

	log.Info("")
	if r.Err == "" {
		log.Info("╔════════════════════════════════════════════════════════════════════════════╗")
		log.Info("║                      ✓ PATCH APPLIED SUCCESSFULLY                          ║")
		log.Info("╚════════════════════════════════════════════════════════════════════════════╝")
	} else {
		log.Info("╔════════════════════════════════════════════════════════════════════════════╗")
		log.Info("║                         ✗ PATCH APPLICATION FAILED                         ║")
		log.Info("╚════════════════════════════════════════════════════════════════════════════╝")
	}
	log.Info("")
	log.Infof("  Source:   %s", r.Source)
	log.Infof("  Target:   %s", r.Target)
	log.Infof("  Digest:   %s", r.Digest)
	log.Infof("  Size:     %d bytes", r.Size)
	log.Infof("  Duration: %s", r.Duration)
	if r.Err != "" {
		log.Infof("  Error:    %s", r.Err)
	}
	log.Info("")
	log.Info("════════════════════════════════════════════════════════════════════════════")
	log.Info("")
}

// WriteJSON marshals r to w as pretty-printed JSON, the --format json
// counterpart to PrintSummary.
func WriteJSON(w io.Writer, r Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("display: marshal result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
