package testenv

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProdLogBarrier records the state of production files before tests run,
// and provides a Check method that fails hard if any test activity leaked
// into them.
type ProdLogBarrier struct {
	realDataDir string
	// Byte offsets at barrier creation time.
	eventsSize  int64
	journalSize int64
}

// DefaultProdDataDir returns the default production data directory
// (~/.lessonbot), ignoring LESSONBOT_DATA_DIR so it always points to
// the real dir.
func DefaultProdDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lessonbot")
}

// NewProdLogBarrier snapshots the production data directory. Call Check()
// after m.Run() to detect test pollution. realDataDir must be resolved
// BEFORE LESSONBOT_DATA_DIR is overridden for tests.
func NewProdLogBarrier(realDataDir string) *ProdLogBarrier {
	return &ProdLogBarrier{
		realDataDir: realDataDir,
		eventsSize:  fileSize(filepath.Join(realDataDir, "events.log")),
		journalSize: fileSize(filepath.Join(realDataDir, "journal.db")),
	}
}

// Check verifies no test pollution reached production files.
// Returns a non-empty error message if pollution is detected.
func (b *ProdLogBarrier) Check() string {
	var violations []string

	if markers := b.scanNewLines(
		filepath.Join(b.realDataDir, "events.log"),
		b.eventsSize,
	); len(markers) > 0 {
		violations = append(violations,
			fmt.Sprintf(
				"test pollution in prod events.log: %s",
				strings.Join(markers, "; "),
			),
		)
	}

	journalPath := filepath.Join(b.realDataDir, "journal.db")
	if size := fileSize(journalPath); b.journalSize == 0 && size > 0 {
		violations = append(violations,
			"test created journal.db in prod data dir")
	}

	if len(violations) == 0 {
		return ""
	}
	return "PROD LOG BARRIER FAILED:\n  " +
		strings.Join(violations, "\n  ")
}

// scanNewLines reads lines appended after startOffset and returns
// descriptions of any lines that look like test pollution.
func (b *ProdLogBarrier) scanNewLines(path string, startOffset int64) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(startOffset, 0); err != nil {
		return nil
	}

	var markers []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, m := range testMarkers(scanner.Text()) {
			if !seen[m] {
				seen[m] = true
				markers = append(markers, m)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		markers = append(markers,
			fmt.Sprintf("scan error (barrier may be incomplete): %v", err))
	}
	return markers
}

// testMarkers returns marker descriptions if the line looks like test
// pollution: entries tagged with the "test" component, or cursors that
// only the test fixtures use.
func testMarkers(line string) []string {
	var out []string
	if strings.Contains(line, `"component":"test"`) {
		out = append(out, `component:"test" entry`)
	}
	if strings.Contains(line, `"cursor":"test-`) {
		out = append(out, `test cursor entry`)
	}
	return out
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
