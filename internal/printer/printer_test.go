package printer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/extract"
)

func TestRenderCard(t *testing.T) {
	card := RenderCard(extract.Task{
		Title:    "Review quarterly report",
		From:     "alice@example.com",
		Priority: "HIGH",
		Deadline: "Friday",
		Reason:   "Boss asked for it before the board meeting",
	})

	for _, want := range []string{"Review quarterly report", "Priority: HIGH", "From: alice@example.com", "Due: Friday", "Reason:"} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}

	for _, line := range strings.Split(card, "\n") {
		if len(line) > receiptWidth {
			t.Errorf("line exceeds receipt width: %q", line)
		}
	}
}

func TestRenderCardNoReason(t *testing.T) {
	card := RenderCard(extract.Task{Title: "Book meeting room", Priority: "LOW", Deadline: "None"})
	if strings.Contains(card, "Reason:") {
		t.Error("empty reason should omit the Reason section")
	}
}

func TestPrintTaskWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	p := &Printer{ArtifactsDir: dir}

	path, err := p.PrintTask(extract.Task{Title: "Send invoice", From: "carol@example.com", Priority: "MEDIUM", Deadline: "None"})
	if err != nil {
		t.Fatalf("PrintTask: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("artifact written outside artifacts dir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !strings.Contains(string(data), "Send invoice") {
		t.Errorf("artifact missing task title:\n%s", data)
	}

	// Unique names per receipt.
	second, err := p.PrintTask(extract.Task{Title: "Send invoice", Priority: "MEDIUM"})
	if err != nil {
		t.Fatalf("PrintTask: %v", err)
	}
	if second == path {
		t.Error("expected a fresh artifact per print")
	}
}

func TestPrintTaskDeviceFailure(t *testing.T) {
	p := &Printer{
		ArtifactsDir: t.TempDir(),
		DevicePath:   filepath.Join(t.TempDir(), "missing", "lp0"),
	}

	path, err := p.PrintTask(extract.Task{Title: "Check the printer", Priority: "LOW"})
	if err == nil {
		t.Fatal("expected device error")
	}
	// The artifact survives even when the device write fails.
	if path == "" {
		t.Error("artifact path should still be returned")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("artifact should exist: %v", statErr)
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three four five six seven eight nine ten", 12)
	for _, line := range lines {
		if len(line) > 12 {
			t.Errorf("line too long: %q", line)
		}
	}
	if got := wrap("", 10); len(got) != 1 || got[0] != "" {
		t.Errorf("empty text should wrap to one empty line, got %v", got)
	}
}
