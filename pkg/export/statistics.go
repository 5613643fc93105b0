// Package export writes the one-line statistics record of an analysis run.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/effort/pkg/workload"
)

// Marker precedes every record in a statistics file.
const Marker = "-- NEW LOG --"

const (
	separator    = " & "
	giniDecimals = 1e5
	fileMode     = 0o644
)

// DefaultTypes are the labels whose workload closes every record.
var DefaultTypes = []string{"code", "doc", "test", "unknown"}

// Statistics is one statistics record.
type Statistics struct {
	Commits   int
	PW        int
	NAP       int
	NTP       int
	PWS       float64
	PIS       float64
	Types     []string
	Workloads []int
}

// Collect builds a record from the commit count and the engine. A nil or
// empty types slice means DefaultTypes.
func Collect(commits int, engine *workload.Engine, types []string) Statistics {
	if len(types) == 0 {
		types = DefaultTypes
	}

	stats := Statistics{
		Commits:   commits,
		PW:        engine.PW(),
		NAP:       engine.NAP(),
		NTP:       engine.NTP(),
		PWS:       engine.PWS(),
		PIS:       engine.PIS(),
		Types:     append([]string(nil), types...),
		Workloads: make([]int, len(types)),
	}

	for idx, label := range types {
		stats.Workloads[idx] = engine.PTW(label)
	}

	return stats
}

// Format renders the record as
// `commits & pw & nap & ntp & pws & pis & ptw(type)...`. Gini values are
// rounded to five decimals; undefined values print as NaN.
func (s Statistics) Format() string {
	fields := make([]string, 0, 6+len(s.Workloads))
	fields = append(fields,
		strconv.Itoa(s.Commits),
		strconv.Itoa(s.PW),
		strconv.Itoa(s.NAP),
		strconv.Itoa(s.NTP),
		formatGini(s.PWS),
		formatGini(s.PIS),
	)

	for _, w := range s.Workloads {
		fields = append(fields, strconv.Itoa(w))
	}

	return strings.Join(fields, separator)
}

func formatGini(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}

	return strconv.FormatFloat(math.Round(v*giniDecimals)/giniDecimals, 'f', -1, 64)
}

// Write emits the marker line followed by the record.
func Write(w io.Writer, s Statistics) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", Marker, s.Format())
	if err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}

	return nil
}

// Append adds the record to the statistics file at path, creating it if
// needed. The file is closed before Append returns.
func Append(path string, s Statistics) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open statistics file: %w", err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close statistics file: %w", closeErr)
		}
	}()

	return Write(f, s)
}
