package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelens/emisx/lookup"
)

// OutputManager writes export files into one timestamped run directory.
type OutputManager struct {
	baseDir   string
	timestamp string
	log       zerolog.Logger
}

// NewOutputManager creates the run directory under baseDir.
func NewOutputManager(baseDir string, log zerolog.Logger) (*OutputManager, error) {
	timestamp := time.Now().Format("20060102_150405")

	outputPath := filepath.Join(baseDir, timestamp)
	if err := os.MkdirAll(outputPath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &OutputManager{
		baseDir:   outputPath,
		timestamp: timestamp,
		log:       log,
	}, nil
}

// WriteJSON writes data as indented JSON under the run directory.
func (om *OutputManager) WriteJSON(data interface{}, prefix string) error {
	outputPath := filepath.Join(om.baseDir, fmt.Sprintf("%s_%s.json", prefix, om.timestamp))

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode data to JSON: %w", err)
	}

	om.log.Debug().Str("file", outputPath).Msg("Wrote JSON export")
	return nil
}

// WriteCSVFile writes rows as a CSV export under the run directory.
func (om *OutputManager) WriteCSVFile(rows []lookup.EnrichedRow, prefix string, includeSource bool) error {
	outputPath := filepath.Join(om.baseDir, fmt.Sprintf("%s_%s.csv", prefix, om.timestamp))

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, rows, includeSource); err != nil {
		return err
	}

	om.log.Debug().Str("file", outputPath).Int("rows", len(rows)).Msg("Wrote CSV export")
	return nil
}

// WriteXMLFile writes EMIS values blocks, one per line.
func (om *OutputManager) WriteXMLFile(rows []lookup.EnrichedRow, prefix string) error {
	outputPath := filepath.Join(om.baseDir, fmt.Sprintf("%s_%s.xml", prefix, om.timestamp))

	if err := os.WriteFile(outputPath, []byte(BuildValuesXMLAll(rows)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write XML export: %w", err)
	}

	om.log.Debug().Str("file", outputPath).Int("rows", len(rows)).Msg("Wrote XML export")
	return nil
}

// BaseDir returns the run directory.
func (om *OutputManager) BaseDir() string {
	return om.baseDir
}
