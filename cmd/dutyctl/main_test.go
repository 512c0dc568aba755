package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dutybot/internal/duty"
)

// The commands share package-level cobra state, so these tests are serial.

func writeConfig(t *testing.T) (cfg, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfg = filepath.Join(dir, "config.yaml")
	body := "storage:\n  driver: file\n  path: " + dataDir + "\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg, dataDir
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(args, &out); err != nil {
		t.Fatalf("dutyctl %s: %v", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(out.String())
}

func readAnchor(t *testing.T, dataDir string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dataDir, "start_date.txt"))
	if err != nil {
		t.Fatalf("read anchor: %v", err)
	}
	return strings.TrimSpace(string(b))
}

func TestShiftAcceptsNegative(t *testing.T) {
	cfg, dataDir := writeConfig(t)
	runCLI(t, "--config", cfg, "roster", "import", writeRoster(t))
	start, err := duty.ParseDate(readAnchor(t, dataDir))
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}

	fwd := duty.DefaultCalendar.ShiftAnchor(start, -3)
	if got := runCLI(t, "--config", cfg, "shift", "-3"); got != "anchor "+duty.DateKey(fwd) {
		t.Fatalf("shift -3 = %q, want anchor %s", got, duty.DateKey(fwd))
	}
	if !fwd.After(start) {
		t.Fatalf("shift -3 moved the anchor back: %s -> %s", duty.DateKey(start), duty.DateKey(fwd))
	}
	back := duty.DefaultCalendar.ShiftAnchor(fwd, 3)
	if got := runCLI(t, "--config", cfg, "shift", "3"); got != "anchor "+duty.DateKey(back) {
		t.Fatalf("shift 3 = %q, want anchor %s", got, duty.DateKey(back))
	}
	if a := readAnchor(t, dataDir); a != duty.DateKey(back) {
		t.Fatalf("stored anchor = %s, want %s", a, duty.DateKey(back))
	}
}

func TestShowPinsAnchorOnFreshStore(t *testing.T) {
	cfg, dataDir := writeConfig(t)
	if _, err := os.Stat(filepath.Join(dataDir, "start_date.txt")); err == nil {
		t.Fatal("anchor exists before first run")
	}
	runCLI(t, "--config", cfg, "show")
	first := readAnchor(t, dataDir)
	if _, err := duty.ParseDate(first); err != nil {
		t.Fatalf("anchor not persisted by show: %v", err)
	}
	runCLI(t, "--config", cfg, "show")
	if again := readAnchor(t, dataDir); again != first {
		t.Fatalf("anchor changed between reads: %s -> %s", first, again)
	}
}

func TestNegativesAsArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want []string
	}{
		{[]string{"shift", "-3"}, []string{"shift", "--", "-3"}},
		{[]string{"-c", "x.yaml", "shift", "-12"}, []string{"-c", "x.yaml", "shift", "--", "-12"}},
		{[]string{"shift", "3"}, []string{"shift", "3"}},
		{[]string{"shift", "--", "-3"}, []string{"shift", "--", "-3"}},
		{[]string{"export-ics", "--days", "-5"}, []string{"export-ics", "--days", "-5"}},
		{[]string{"audit", "-n", "5"}, []string{"audit", "-n", "5"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, negativesAsArgs(tt.in)); diff != "" {
			t.Fatalf("negativesAsArgs(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func writeRoster(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "roster.txt")
	if err := os.WriteFile(p, []byte("Иванов Пётр\nПетров Иван\nСидоров Олег\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
