package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type estimate struct {
	Voice string  `json:"voice" yaml:"voice"`
	Hz    float64 `json:"hz" yaml:"hz"`
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output([]estimate{{"A4", 440}}, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	var got []estimate
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Hz != 440 {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("default indent missing: %s", buf.String())
	}
}

func TestOutputYAMLDefault(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(estimate{"A4", 440}, OutputOptions{Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "voice: A4") {
		t.Fatalf("got %s", buf.String())
	}
}

func TestOutputRaw(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("plain", OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(estimate{"A4", 440}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"voice": "A4"`) {
		t.Fatalf("got %s", data)
	}
}

func TestOutputUnknownFormat(t *testing.T) {
	if err := Output(1, OutputOptions{Format: "table", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParseOutputFormat("table"); err == nil {
		t.Fatal("expected error")
	}
	if f, err := ParseOutputFormat(""); err != nil || f != FormatYAML {
		t.Fatalf("ParseOutputFormat(\"\") = %q, %v", f, err)
	}
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = old }()
	fn()
	w.Close()
	data, _ := io.ReadAll(r)
	return string(data)
}

func TestPrintLines(t *testing.T) {
	if got := captureStderr(t, func() { PrintSuccess("wrote %s", "a.wav") }); got != "✓ wrote a.wav\n" {
		t.Fatalf("PrintSuccess = %q", got)
	}
	if got := captureStderr(t, func() { PrintError("%v", "bad score") }); got != "Error: bad score\n" {
		t.Fatalf("PrintError = %q", got)
	}
}
