// Package printer renders task receipts and emits them to an ESC/POS
// thermal printer device.
//
// Each printed task is also kept as a plain-text artifact so receipts can be
// inspected (or reprinted) after the fact. Printing is best-effort: the
// pipeline treats any failure here as a warning, never a run failure.
package printer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/UltimoTheUltimate/ReceiptPrinterAgentLocalAI/internal/extract"
)

// receiptWidth is the character width of a 58mm thermal printer.
const receiptWidth = 32

// ESC/POS control sequences.
var (
	escInit      = []byte{0x1b, 0x40}             // initialize printer
	escBoldOn    = []byte{0x1b, 0x45, 0x01}       // emphasize on
	escBoldOff   = []byte{0x1b, 0x45, 0x00}       // emphasize off
	escDoubleOn  = []byte{0x1d, 0x21, 0x11}       // double width + height
	escDoubleOff = []byte{0x1d, 0x21, 0x00}       // normal size
	escCut       = []byte{0x1d, 0x56, 0x42, 0x00} // partial cut with feed
)

// Printer writes task receipts to a device and an artifacts directory.
type Printer struct {
	// DevicePath is the printer device (e.g. "/dev/usb/lp0").
	// Empty disables device output; receipts are still rendered to disk.
	DevicePath string

	// ArtifactsDir holds the rendered receipt text files.
	ArtifactsDir string
}

// PrintTask renders a receipt for the task, saves it as an artifact, and
// sends it to the device when one is configured. It returns the artifact path.
func (p *Printer) PrintTask(task extract.Task) (string, error) {
	card := RenderCard(task)

	dir := p.ArtifactsDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "taskagent-receipts")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating artifacts dir: %w", err)
	}

	artifactPath := filepath.Join(dir, fmt.Sprintf("task-%s.txt", uuid.NewString()))
	if err := os.WriteFile(artifactPath, []byte(card), 0644); err != nil {
		return "", fmt.Errorf("writing receipt artifact: %w", err)
	}

	if p.DevicePath != "" {
		if err := p.emit(task, card); err != nil {
			return artifactPath, fmt.Errorf("emitting to printer: %w", err)
		}
	}

	return artifactPath, nil
}

// emit frames the receipt in ESC/POS and writes it to the device.
func (p *Printer) emit(task extract.Task, card string) error {
	f, err := os.OpenFile(p.DevicePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening printer device: %w", err)
	}
	defer f.Close()

	var buf []byte
	buf = append(buf, escInit...)
	buf = append(buf, escDoubleOn...)
	buf = append(buf, "TASK\n"...)
	buf = append(buf, escDoubleOff...)
	buf = append(buf, escBoldOn...)
	for _, line := range wrap(task.Title, receiptWidth) {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	buf = append(buf, escBoldOff...)
	buf = append(buf, card...)
	buf = append(buf, "\n\n\n\n"...)
	buf = append(buf, escCut...)

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("writing to printer device: %w", err)
	}
	return nil
}

// RenderCard renders the plain-text receipt body for a task.
func RenderCard(task extract.Task) string {
	rule := strings.Repeat("=", receiptWidth)

	var sb strings.Builder
	sb.WriteString(rule + "\n")
	for _, line := range wrap(task.Title, receiptWidth) {
		sb.WriteString(center(line, receiptWidth) + "\n")
	}
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("Priority: %s\n", task.Priority))
	sb.WriteString(fmt.Sprintf("From: %s\n", task.From))
	sb.WriteString(fmt.Sprintf("Due: %s\n", task.Deadline))
	if task.Reason != "" {
		sb.WriteString("Reason:\n")
		for _, line := range wrap(task.Reason, receiptWidth-2) {
			sb.WriteString("  " + line + "\n")
		}
	}
	sb.WriteString(rule + "\n")
	return sb.String()
}

// wrap breaks text into lines of at most width characters on word boundaries.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) <= width {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)
	return lines
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
