package sink

import (
	"fmt"
	"os"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// Open returns the Store selected by cfg. kind names the record type in a
// SQLite database; header is the column list of that type.
func Open(cfg types.OutputConfig, kind string, header []string) (Store, error) {
	switch cfg.Format {
	case types.OutputCSV, "":
		return OpenCSV(cfg.Path, header)
	case types.OutputSQLite:
		return OpenSQLite(cfg.Path, kind, header)
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
}

// ReadAll returns every stored row of kind from the output cfg names.
func ReadAll(cfg types.OutputConfig, kind string, header []string) ([][]string, error) {
	switch cfg.Format {
	case types.OutputCSV, "":
		return ReadCSV(cfg.Path, header)
	case types.OutputSQLite:
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, err
		}
		s, err := OpenSQLite(cfg.Path, kind, header)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Rows()
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
}
