package main

import (
	"strings"
	"testing"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/authguard
BenchmarkCheckRateLimitMemory-8   	 5000000	       200.0 ns/op	      48 B/op	       1 allocs/op
BenchmarkCheckRateLimitMemory-8   	 5000000	       220.0 ns/op	      48 B/op	       1 allocs/op
BenchmarkCheckRateLimitMemory-8   	 5000000	       210.0 ns/op	      48 B/op	       1 allocs/op
BenchmarkCreateConsumeToken-8     	   20000	     50000 ns/op
PASS
`

func TestParseBenchmarksKeepsTrackedOnly(t *testing.T) {
	tracked := map[string][]string{"BenchmarkCheckRateLimitMemory": {"ns/op"}}
	got, err := parseBenchmarks(strings.NewReader(baselineOutput), tracked)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one benchmark, got %v", got)
	}
	if n := len(got["BenchmarkCheckRateLimitMemory"]["ns/op"]); n != 3 {
		t.Fatalf("expected 3 ns/op samples, got %d", n)
	}
	if n := len(got["BenchmarkCheckRateLimitMemory"]["allocs/op"]); n != 3 {
		t.Fatalf("expected 3 allocs/op samples, got %d", n)
	}
}

func TestCompareFlagsRegression(t *testing.T) {
	tracked := map[string][]string{
		"BenchmarkCheckRateLimitMemory": {"ns/op"},
		"BenchmarkCreateConsumeToken":   {"ns/op"},
	}
	base, _ := parseBenchmarks(strings.NewReader(baselineOutput), tracked)
	cand, _ := parseBenchmarks(strings.NewReader(strings.NewReplacer(
		"200.0 ns/op", "400.0 ns/op",
		"220.0 ns/op", "420.0 ns/op",
		"210.0 ns/op", "410.0 ns/op",
	).Replace(baselineOutput)), tracked)

	rows, failures := compare(base, cand, tracked, 0.30)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].benchmark != "BenchmarkCheckRateLimitMemory" {
		t.Fatalf("rows not sorted: %+v", rows)
	}
	if len(failures) != 1 || !strings.Contains(failures[0], "BenchmarkCheckRateLimitMemory") {
		t.Fatalf("expected one limiter regression, got %v", failures)
	}
}

func TestCompareWithinThreshold(t *testing.T) {
	tracked := map[string][]string{"BenchmarkCheckRateLimitMemory": {"ns/op"}}
	base, _ := parseBenchmarks(strings.NewReader(baselineOutput), tracked)

	_, failures := compare(base, base, tracked, 0.30)
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
}

func TestCompareMissingSamples(t *testing.T) {
	tracked := map[string][]string{"BenchmarkCheckRateLimitRedis": {"ns/op"}}
	_, failures := compare(sampleSet{}, sampleSet{}, tracked, 0.30)
	if len(failures) != 1 || !strings.Contains(failures[0], "missing samples") {
		t.Fatalf("expected missing samples failure, got %v", failures)
	}
}

func TestCompareZeroAllocBaseline(t *testing.T) {
	tracked := map[string][]string{"BenchmarkCheckRateLimitMemory": {"allocs/op"}}
	base := sampleSet{"BenchmarkCheckRateLimitMemory": {"allocs/op": {0, 0}}}
	cand := sampleSet{"BenchmarkCheckRateLimitMemory": {"allocs/op": {1, 1}}}

	_, failures := compare(base, cand, tracked, 0.30)
	if len(failures) != 1 {
		t.Fatalf("expected regression from zero allocs, got %v", failures)
	}
}

func TestNormalizeBenchmarkName(t *testing.T) {
	cases := map[string]string{
		"BenchmarkCreateConsumeToken-16": "BenchmarkCreateConsumeToken",
		"BenchmarkCreateConsumeToken":    "BenchmarkCreateConsumeToken",
		"BenchmarkFoo-bar":               "BenchmarkFoo-bar",
	}
	for in, want := range cases {
		if got := normalizeBenchmarkName(in); got != want {
			t.Fatalf("normalizeBenchmarkName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("odd median = %v", got)
	}
	if got := median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("even median = %v", got)
	}
	if got := median(nil); got != 0 {
		t.Fatalf("empty median = %v", got)
	}
}
