// Command authguard-benchcheck compares two `go test -bench` outputs and
// exits non-zero when a tracked benchmark regressed past the threshold.
//
//	go test -run '^$' -bench . -benchmem -count 5 . > new.txt
//	go run ./cmd/authguard-benchcheck -baseline old.txt -candidate new.txt
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

const defaultThreshold = 0.30

// Hot paths: every request hits a limiter check, every confirm link a
// create/consume pair.
var defaultTracked = map[string][]string{
	"BenchmarkCheckRateLimitMemory": {"ns/op", "allocs/op"},
	"BenchmarkCheckRateLimitRedis":  {"ns/op"},
	"BenchmarkCreateConsumeToken":   {"ns/op"},
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
		only          string
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.StringVar(&only, "bench", "", "comma-separated benchmark names to check (ns/op); defaults to the built-in set")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	tracked := defaultTracked
	if only != "" {
		tracked = map[string][]string{}
		for _, name := range strings.Split(only, ",") {
			if name = strings.TrimSpace(name); name != "" {
				tracked[name] = []string{"ns/op"}
			}
		}
	}

	baseline, err := parseBenchmarkFile(baselinePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(baseline, candidate, tracked, threshold)
	fmt.Println("benchmark metric baseline candidate delta")
	for _, r := range rows {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}
