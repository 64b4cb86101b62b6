package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/edanliahovetsky/bline-engine/internal/storage/memory/export/v1"
)

// exportJSON writes the run data to a JSON file, gzipped when configured.
// Callers must hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	docName := b.info.DocumentName
	if docName == "" {
		docName = "trajectory"
	}
	docName = strings.TrimSuffix(docName, filepath.Ext(docName))
	docName = strings.ReplaceAll(docName, " ", "_")
	docName = strings.ReplaceAll(docName, ":", "_")
	timestamp := b.info.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", docName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", docName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() v1.Export {
	return v1.Build(&v1.RunData{
		Info:   b.info,
		Result: b.result,
	})
}

func (b *Backend) writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
