// Package iojson reads and writes JSON on the CLI boundary: pretty
// printed output for subcommands like `ls --json`, and structured
// errors on stderr so scripted callers can parse failures.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Error is the shape all CLI-level JSON errors are rendered in.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// jsonError hand-assembles an Error blob for the case where marshaling
// itself failed; json.Marshal on the strings keeps the escaping valid.
func jsonError(msg string, jsonErr error) string {
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(jsonErr.Error())
	return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// MarshalError renders msg and data as an Error document. When the
// document itself cannot be marshaled the fallback blob carries the
// marshaling error instead, so the caller always gets valid JSON.
func MarshalError(msg string, data map[string]any) string {
	resp := Error{Message: msg, Data: data}

	bits, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return jsonError(msg, err)
	}

	return string(bits)
}

// WriteError prints a JSON error document to stderr.
func WriteError(str string, data map[string]any) error {
	errstr := MarshalError(str, data)

	_, err := fmt.Fprintln(os.Stderr, errstr)
	return err
}

// WriteWith pretty-prints obj to w; marshaling failures are reported
// as a JSON error on ew instead.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		errStr := jsonError("error marshaling in iojson.Write", err)
		_, err = fmt.Fprintln(ew, errStr)
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr]
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}
