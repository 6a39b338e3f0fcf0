package codegen

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/runway-sync/runway/internal/config"
	"github.com/runway-sync/runway/internal/state"
	"github.com/runway-sync/runway/internal/utils"
)

// Output is one generated file.
type Output struct {
	Path    string // absolute
	Format  Format
	Options Options
}

// OutputsFromConfig validates the codegen entries of cfg.
func OutputsFromConfig(cfg *config.Config) ([]Output, error) {
	outputs := make([]Output, 0, len(cfg.Codegens))
	for _, cg := range cfg.Codegens {
		format, err := ParseFormat(cg.Format)
		if err != nil {
			return nil, fmt.Errorf("codegen '%s': %w", cg.Path, err)
		}
		outputs = append(outputs, Output{
			Path:   cfg.ResolvePath(cg.Path),
			Format: format,
			Options: Options{
				Flatten:        cg.Flatten,
				StripPrefix:    cg.StripPrefix,
				StripExtension: cg.StripExtension,
			},
		})
	}
	return outputs, nil
}

// Generate writes every output for records. Files whose content would not
// change are left untouched. A failing output does not stop the others.
func Generate(outputs []Output, records *state.RecordSet) (written int, err error) {
	var errs []error
	for _, out := range outputs {
		changed, err := generateOne(out, records)
		if err != nil {
			slog.Error("codegen failed", "path", out.Path, "format", out.Format, "error", err)
			errs = append(errs, fmt.Errorf("codegen '%s': %w", out.Path, err))
			continue
		}
		if changed {
			written++
			slog.Info("codegen written", "path", out.Path, "format", out.Format)
		} else {
			slog.Debug("codegen unchanged", "path", out.Path)
		}
	}
	return written, errors.Join(errs...)
}

func generateOne(out Output, records *state.RecordSet) (bool, error) {
	root, err := NewMapping(records, out.Options)
	if err != nil {
		return false, err
	}
	data, err := Render(root, out.Format)
	if err != nil {
		return false, err
	}
	return utils.WriteFileIfChanged(out.Path, data, 0o644)
}
