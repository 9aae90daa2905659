package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/agentbench/agenteval/internal/models"
)

// WriteJSON writes the full evaluation result as indented JSON.
func WriteJSON(w io.Writer, eval *models.EvaluationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(eval); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}

// WriteJSONFile writes the evaluation result to a file.
func WriteJSONFile(eval *models.EvaluationResult, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating result file: %w", err)
	}
	defer out.Close()
	return WriteJSON(out, eval)
}
