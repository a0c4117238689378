package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
)

// ReadLog reads events from a JSONL audit log. Malformed lines are skipped;
// the log is append-only and a torn final line must not break reporting.
// If last > 0 only the last N parsed events are returned.
func ReadLog(path string, last int) ([]Event, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied report input
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if last > 0 && len(events) > last {
		events = events[len(events)-last:]
	}
	return events, nil
}

// RateBucket counts total and allowed events for one grouping key.
type RateBucket struct {
	Name    string
	Total   int
	Allowed int
}

// Rate is the allow fraction for the bucket.
func (b RateBucket) Rate() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Allowed) / float64(b.Total)
}

// Quantiles holds the p50/p95 pair for one latency series.
type Quantiles struct {
	P50 float64
	P95 float64
}

// Report summarizes an audit log for offline review.
type Report struct {
	Total   int
	Allowed int
	Denied  int

	Latency       Quantiles
	IntentLatency Quantiles
	PolicyLatency Quantiles

	PolicyVersions []string
	ByRole         []RateBucket
	ByIntent       []RateBucket
	DenyReasons    []RateBucket
	BreakGlassUses int
	UnknownIntents int
}

// UnknownRate is the fraction of requests the classifier could not label.
func (r Report) UnknownRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.UnknownIntents) / float64(r.Total)
}

// BuildReport aggregates events into a Report.
func BuildReport(events []Event) Report {
	r := Report{Total: len(events)}

	latencies := make([]float64, 0, len(events))
	intentLatencies := make([]float64, 0, len(events))
	policyLatencies := make([]float64, 0, len(events))
	byRole := map[string]*RateBucket{}
	byIntent := map[string]*RateBucket{}
	denyReasons := map[string]int{}
	versions := map[string]struct{}{}

	bump := func(m map[string]*RateBucket, key string, allowed bool) {
		b, ok := m[key]
		if !ok {
			b = &RateBucket{Name: key}
			m[key] = b
		}
		b.Total++
		if allowed {
			b.Allowed++
		}
	}

	for _, e := range events {
		if e.Allowed {
			r.Allowed++
		} else {
			r.Denied++
			reason := e.Reason
			if reason == "" {
				reason = "unknown"
			}
			denyReasons[reason]++
		}
		if e.Allowed && e.Intent.Intent == domain.IntentAdminOverride {
			r.BreakGlassUses++
		}
		if e.Intent.Intent == domain.IntentUnknown {
			r.UnknownIntents++
		}
		latencies = append(latencies, e.LatencyMS)
		intentLatencies = append(intentLatencies, e.IntentMS)
		policyLatencies = append(policyLatencies, e.PolicyMS)
		bump(byRole, orUnknown(e.Role), e.Allowed)
		bump(byIntent, orUnknown(e.Intent.Intent), e.Allowed)
		if e.PolicyVersion != "" {
			versions[e.PolicyVersion] = struct{}{}
		}
	}

	r.Latency = quantiles(latencies)
	r.IntentLatency = quantiles(intentLatencies)
	r.PolicyLatency = quantiles(policyLatencies)
	r.PolicyVersions = sortedKeys(versions)
	r.ByRole = sortBuckets(byRole)
	r.ByIntent = sortBuckets(byIntent)

	for reason, count := range denyReasons {
		r.DenyReasons = append(r.DenyReasons, RateBucket{Name: reason, Total: count})
	}
	sort.Slice(r.DenyReasons, func(i, j int) bool {
		if r.DenyReasons[i].Total != r.DenyReasons[j].Total {
			return r.DenyReasons[i].Total > r.DenyReasons[j].Total
		}
		return r.DenyReasons[i].Name < r.DenyReasons[j].Name
	})

	return r
}

// Markdown renders the report in the layout operators already consume.
func (r Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Gateway Metrics\n\n")
	fmt.Fprintf(&b, "- Total requests: **%d**\n", r.Total)
	fmt.Fprintf(&b, "- Allow: **%d**, Deny: **%d**\n", r.Allowed, r.Denied)
	fmt.Fprintf(&b, "- Latency p50: **%.2f ms**, p95: **%.2f ms**\n", r.Latency.P50, r.Latency.P95)
	fmt.Fprintf(&b, "- Intent stage p50: **%.2f ms**, p95: **%.2f ms**\n", r.IntentLatency.P50, r.IntentLatency.P95)
	fmt.Fprintf(&b, "- Policy stage p50: **%.2f ms**, p95: **%.2f ms**\n", r.PolicyLatency.P50, r.PolicyLatency.P95)
	fmt.Fprintf(&b, "- Unknown intent rate: **%.2f**\n", r.UnknownRate())
	fmt.Fprintf(&b, "- Break-glass uses: **%d**\n", r.BreakGlassUses)
	if len(r.PolicyVersions) > 0 {
		fmt.Fprintf(&b, "- Policy version(s): `%s`\n", strings.Join(r.PolicyVersions, ", "))
	}
	b.WriteString("\n## Allow rate by role\n\n| Role | Samples | Allow rate |\n|---|---:|---:|\n")
	for _, bucket := range r.ByRole {
		fmt.Fprintf(&b, "| %s | %d | %.2f |\n", bucket.Name, bucket.Total, bucket.Rate())
	}
	b.WriteString("\n## Allow rate by intent\n\n| Intent | Samples | Allow rate |\n|---|---:|---:|\n")
	for _, bucket := range r.ByIntent {
		fmt.Fprintf(&b, "| %s | %d | %.2f |\n", bucket.Name, bucket.Total, bucket.Rate())
	}
	if len(r.DenyReasons) > 0 {
		b.WriteString("\n## Top deny reasons\n\n| Reason | Count |\n|---|---:|\n")
		for _, bucket := range r.DenyReasons {
			fmt.Fprintf(&b, "| %s | %d |\n", bucket.Name, bucket.Total)
		}
	}
	return b.String()
}

func quantiles(xs []float64) Quantiles {
	return Quantiles{P50: percentile(xs, 0.5), P95: percentile(xs, 0.95)}
}

// percentile computes the q-quantile with linear interpolation, rounded to
// two decimals, matching the historical reporting output.
func percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	k := float64(len(sorted)-1) * q
	lo := int(math.Floor(k))
	hi := lo + 1
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	v := sorted[lo]
	if hi != lo {
		v += (sorted[hi] - sorted[lo]) * (k - float64(lo))
	}
	return math.Round(v*100) / 100
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortBuckets(m map[string]*RateBucket) []RateBucket {
	out := make([]RateBucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}
