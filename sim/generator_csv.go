// Defines CSVGenerator, a multi-source replay generator reading job sizes
// from AzurePublicDataset-format CSV files.

package sim

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
)

// csvRow is one parsed (init_size, expected_output) pair from a source file.
type csvRow struct {
	InitSize       int64
	ExpectedOutput int64
}

// CSVSource configures one replay file: a fraction of the total job quota is
// drawn from it, sequentially, before the generator moves to the next
// source. The CSV must have a header row including ContextTokens and
// GeneratedTokens columns (TIMESTAMP, if present, is ignored).
type CSVSource struct {
	Nickname string
	FilePath string
	Fraction float64

	rows         []csvRow
	targetCount  int
	currentIndex int
}

func (s *CSVSource) loadRows() error {
	f, err := os.Open(s.FilePath)
	if err != nil {
		return fmt.Errorf("csv source %q: %w", s.Nickname, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("csv source %q: reading header: %w", s.Nickname, err)
	}
	contextCol, genCol := -1, -1
	for i, col := range header {
		switch col {
		case "ContextTokens":
			contextCol = i
		case "GeneratedTokens":
			genCol = i
		}
	}
	if contextCol < 0 || genCol < 0 {
		return fmt.Errorf("csv source %q: missing ContextTokens/GeneratedTokens column", s.Nickname)
	}

	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		var init, out int64
		if _, scanErr := fmt.Sscanf(record[contextCol], "%d", &init); scanErr != nil {
			logrus.Errorf("csv source %q: invalid ContextTokens %q, skipping row", s.Nickname, record[contextCol])
			continue
		}
		if _, scanErr := fmt.Sscanf(record[genCol], "%d", &out); scanErr != nil {
			logrus.Errorf("csv source %q: invalid GeneratedTokens %q, skipping row", s.Nickname, record[genCol])
			continue
		}
		s.rows = append(s.rows, csvRow{InitSize: init, ExpectedOutput: out})
	}
	return nil
}

// CSVGenerator draws jobs sequentially from multiple CSVSources, exhausting
// each source's fraction-derived target count before moving to the next.
type CSVGenerator struct {
	baseGenerator
	sources []*CSVSource
}

// NewCSVGenerator validates that source fractions sum to 1 (within 1e-6),
// loads every source's rows, computes each source's target job count (the
// last source absorbs the rounding remainder), and verifies every source
// has enough rows for its target.
func NewCSVGenerator(scheduler *GlobalScheduler, speed float64, total int, dropout float64, sources []*CSVSource) (*CSVGenerator, error) {
	var sum float64
	for _, src := range sources {
		sum += src.Fraction
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, fmt.Errorf("fractions of CSV sources do not sum to 1 (got %v)", sum)
	}

	for _, src := range sources {
		if err := src.loadRows(); err != nil {
			return nil, err
		}
	}

	accumulated := 0
	for i, src := range sources {
		if i < len(sources)-1 {
			src.targetCount = int(float64(total) * src.Fraction)
			accumulated += src.targetCount
		} else {
			src.targetCount = total - accumulated
		}
	}

	for _, src := range sources {
		if len(src.rows) < src.targetCount {
			return nil, fmt.Errorf("csv source %q does not have enough rows (target %d but available %d)", src.Nickname, src.targetCount, len(src.rows))
		}
	}

	logrus.Debugf("loaded %d CSV sources:", len(sources))
	for i, src := range sources {
		logrus.Debugf("[%d] %s: %d jobs from %s (total %d rows)", i+1, src.Nickname, src.targetCount, src.FilePath, len(src.rows))
	}

	g := &CSVGenerator{
		baseGenerator: newBaseGenerator("MultiCSV Generator", scheduler, speed, total, dropout, nil),
		sources:       sources,
	}
	g.tryAddOne = g.tryAddOneJob
	return g, nil
}

func (g *CSVGenerator) currentSource() *CSVSource {
	for _, src := range g.sources {
		if src.currentIndex < src.targetCount {
			return src
		}
	}
	return nil
}

func (g *CSVGenerator) tryAddOneJob(now int64) bool {
	src := g.currentSource()
	if src == nil {
		return false
	}
	row := src.rows[src.currentIndex]
	src.currentIndex++

	job := NewJob(fmt.Sprintf("job-%d", g.jobID), now, row.InitSize, row.ExpectedOutput)
	g.scheduler.ReceiveJob(job)
	logrus.Debugf("loader >> loaded job %d [%d/%d] from source %q", g.jobID, row.InitSize, row.ExpectedOutput, src.Nickname)
	return true
}

func (g *CSVGenerator) String() string {
	s := fmt.Sprintf("%s: %.2f jobs/step, %.2f dropout, %d/%d generated\tSources:", g.name, g.speed, g.dropout, g.generatedCount, g.totalLimit)
	for i, src := range g.sources {
		if i > 0 {
			s += " |"
		}
		s += fmt.Sprintf(" %s: %d/%d", src.Nickname, src.currentIndex, src.targetCount)
	}
	return s
}
