package cli

import (
	"fmt"
	"io"
	"strings"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/jsonvalue"
)

// printSnapshot writes a snapshot as one JSON line, or as key: value lines in
// text format. A non-existent snapshot prints null.
func printSnapshot(w io.Writer, format string, snap *model.DataSnapshot) error {
	if format == "text" && snap.HasChildren() {
		var err error
		snap.ForEach(func(child *model.DataSnapshot) bool {
			var raw []byte
			raw, err = child.ExportJSON()
			if err != nil {
				return true
			}
			_, err = fmt.Fprintf(w, "%s: %s\n", child.Key(), raw)
			return err != nil
		})
		return err
	}
	raw, err := snap.ExportJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

// parseValue reads a command-line JSON argument. Text that is not valid JSON is
// taken as a plain string.
func parseValue(arg string) (jsonvalue.Value, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return jsonvalue.Value{}, fmt.Errorf("empty value")
	}
	v, err := jsonvalue.Parse([]byte(trimmed))
	if err != nil {
		return jsonvalue.StringValue(arg), nil
	}
	return v, nil
}

// parseBound reads a query bound: JSON scalars keep their type, anything else
// is a string.
func parseBound(arg string) interface{} {
	v, err := jsonvalue.Parse([]byte(arg))
	if err != nil || v.IsObject() || v.Kind() == jsonvalue.Array {
		return arg
	}
	return v.Interface()
}
