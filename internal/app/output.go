package app

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// outputResults formats data in the configured format and writes it to the
// output file or stdout
func (app *App) outputResults(data any) error {
	formatted, err := formatOutput(data, app.config.OutputFormat)
	if err != nil {
		return err
	}

	if app.ctx.OutputFile != "" {
		return app.writeToFile(formatted)
	}

	_, err = app.stdout().Write(formatted)
	return err
}

func (app *App) stdout() io.Writer {
	if app.ctx.Stdout != nil {
		return app.ctx.Stdout
	}
	return os.Stdout
}

// formatOutput renders data as json (default) or yaml.
func formatOutput(data any, format string) ([]byte, error) {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to format output data: %w", err)
		}
		return out, nil
	case "", "json":
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil && strings.Contains(err.Error(), "unsupported value") {
			// NaN and Inf have no JSON encoding.
			out, err = json.MarshalIndent(sanitizeForJSON(data), "", "  ")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to format output data: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeToFile writes data to the specified output file
func (app *App) writeToFile(data []byte) error {
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(app.ctx.OutputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}

// sanitizeForJSON converts data to plain maps and slices, replacing NaN and
// Inf with zero
func sanitizeForJSON(data any) any {
	if data == nil {
		return nil
	}
	return sanitizeValue(reflect.ValueOf(data))
}

func sanitizeValue(val reflect.Value) any {
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		return sanitizeValue(val.Elem())
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0.0
		}
		return f
	case reflect.Slice, reflect.Array:
		if val.Kind() == reflect.Slice && val.IsNil() {
			return nil
		}
		result := make([]any, val.Len())
		for i := range result {
			result[i] = sanitizeValue(val.Index(i))
		}
		return result
	case reflect.Map:
		result := make(map[string]any, val.Len())
		for _, key := range val.MapKeys() {
			result[fmt.Sprintf("%v", key.Interface())] = sanitizeValue(val.MapIndex(key))
		}
		return result
	case reflect.Struct:
		result := make(map[string]any)
		sanitizeFields(val, result)
		return result
	default:
		if !val.CanInterface() {
			return nil
		}
		return val.Interface()
	}
}

// sanitizeFields copies exported fields under their JSON names, flattening
// embedded structs the way encoding/json does.
func sanitizeFields(val reflect.Value, result map[string]any) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fv := val.Field(i)
		if field.Anonymous && fv.Kind() == reflect.Struct && field.Tag.Get("json") == "" {
			sanitizeFields(fv, result)
			continue
		}
		if !field.IsExported() {
			continue
		}

		name := field.Name
		omitEmpty := false
		if tag := field.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				omitEmpty = omitEmpty || opt == "omitempty"
			}
		}

		if omitEmpty && fv.IsZero() {
			continue
		}
		result[name] = sanitizeValue(fv)
	}
}
