package commands

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/tonewave/cmd/tonewave/internal/config"
)

const testScore = `
duration: 0.5
events:
  - at: 0
    press: {id: A4, frequency: 440, attack: 0.01}
  - at: 0.2
    sample: {kind: spectrum}
  - at: 0.2
    sample: {kind: waveform, voices: [A4]}
  - at: 0.3
    release: {id: A4, release: 0.05}
`

// setupTestEnv points the config at a fresh directory and clears overrides.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	t.Setenv(config.EnvAddr, "")
	t.Setenv(config.EnvSampleRate, "")
	t.Setenv(config.EnvFrameRate, "")
	return dir
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout, oldStderr := os.Stdout, os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout, os.Stderr = wOut, wErr

	var outBuf, errBuf bytes.Buffer
	done := make(chan struct{})
	go func() {
		outBuf.ReadFrom(rOut)
		errBuf.ReadFrom(rErr)
		close(done)
	}()

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	<-done
	os.Stdout, os.Stderr = oldStdout, oldStderr

	stdout, stderr = outBuf.String(), errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}
	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeScore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "score.yaml")
	if err := os.WriteFile(path, []byte(testScore), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)
	stdout, _, code := runCmd(t, "version")
	if code != 0 || !strings.Contains(stdout, "tonewave") {
		t.Fatalf("exit %d: %s", code, stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	setupTestEnv(t)
	stdout, _, code := runCmd(t, "version", "--format", "json")
	if code != 0 || !strings.Contains(stdout, `"version"`) {
		t.Fatalf("exit %d: %s", code, stdout)
	}
}

func TestConfigSetGet(t *testing.T) {
	dir := setupTestEnv(t)

	if _, stderr, code := runCmd(t, "config", "set", "engine.tap_resolution", "4096"); code != 0 {
		t.Fatalf("set: %s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	stdout, _, code := runCmd(t, "config", "get", "engine.tap_resolution")
	if code != 0 || strings.TrimSpace(stdout) != "4096" {
		t.Fatalf("get = %q", stdout)
	}
	if _, _, code := runCmd(t, "config", "set", "engine.tap_resolution", "1000"); code == 0 {
		t.Fatal("invalid value accepted")
	}
	stdout, _, _ = runCmd(t, "config", "show", "--format", "json")
	if !strings.Contains(stdout, `"tapResolution": 4096`) {
		t.Fatalf("show = %s", stdout)
	}
}

func TestConfigSetIgnoresEnv(t *testing.T) {
	dir := setupTestEnv(t)
	t.Setenv(config.EnvAddr, ":9999")
	if _, stderr, code := runCmd(t, "config", "set", "server.frame_rate", "30"); code != 0 {
		t.Fatalf("set: %s", stderr)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if strings.Contains(string(data), "9999") {
		t.Fatalf("env override saved:\n%s", data)
	}
}

func TestRender(t *testing.T) {
	setupTestEnv(t)
	out := filepath.Join(t.TempDir(), "out.wav")
	if _, stderr, code := runCmd(t, "render", writeScore(t), "-o", out); code != 0 {
		t.Fatalf("render: %s", stderr)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.SampleRate != 48000 || len(buf.Data) != 24000 {
		t.Fatalf("rate %d, %d samples", buf.Format.SampleRate, len(buf.Data))
	}
	var peak int
	for _, v := range buf.Data[:9600] {
		peak = max(peak, v)
	}
	if peak < 16000 || peak > 16500 {
		t.Fatalf("peak = %d, want about half scale", peak)
	}
	for _, v := range buf.Data[len(buf.Data)-100:] {
		if v != 0 {
			t.Fatal("tail not silent after release")
		}
	}
}

func TestRenderRaw(t *testing.T) {
	setupTestEnv(t)
	out := filepath.Join(t.TempDir(), "out.pcm")
	if _, stderr, code := runCmd(t, "render", writeScore(t), "--raw", "-o", out); code != 0 {
		t.Fatalf("render: %s", stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2*24000 {
		t.Fatalf("%d bytes", len(data))
	}
}

func TestAnalyze(t *testing.T) {
	setupTestEnv(t)
	stdout, stderr, code := runCmd(t, "analyze", writeScore(t), "--format", "json")
	if code != 0 {
		t.Fatalf("analyze: %s", stderr)
	}
	var report analysis
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("%v\n%s", err, stdout)
	}
	if len(report.Frames) != 2 {
		t.Fatalf("%d frames", len(report.Frames))
	}
	spec, wave := report.Frames[0], report.Frames[1]
	binWidth := float64(report.SampleRate) / float64(report.TapResolution)
	if math.Abs(spec.Hz-440) > binWidth {
		t.Fatalf("estimate %v Hz", spec.Hz)
	}
	if wave.Peak < 0.99 || wave.RMS < 0.6 || wave.Data != nil {
		t.Fatalf("waveform = %+v", wave)
	}
}

func TestAnalyzeBadScore(t *testing.T) {
	setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("events:\n  - at: 0\n    strike: {}\n"), 0644)
	if _, _, code := runCmd(t, "analyze", path); code == 0 {
		t.Fatal("bad score accepted")
	}
}
