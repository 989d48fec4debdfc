package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"portscan/scan"
	"portscan/store"
)

var records = []scan.Record{
	{Port: 22, Service: "SSH", Version: "OpenSSH 8.9p1", Status: scan.PortOpen},
	{Port: 23, Service: scan.UnknownService, Status: scan.PortClosed},
	{Port: 8443, Service: "VERYLONGSERVICENAME", Version: strings.Repeat("v", 40), Status: scan.PortFiltered},
}

func TestPrinterTable(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{w: buf}
	p.Table(records)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "PORT") || !strings.HasSuffix(lines[0], "STATUS") {
		t.Errorf("bad header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "22     SSH") || !strings.HasSuffix(lines[1], "OPEN") {
		t.Errorf("bad row %q", lines[1])
	}
	if !strings.Contains(lines[2], " - ") {
		t.Errorf("empty version should render as '-': %q", lines[2])
	}
	if strings.Contains(lines[3], "VERYLONGSERVICENAME") || strings.Contains(lines[3], strings.Repeat("v", 29)) {
		t.Errorf("columns should be clipped: %q", lines[3])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("color codes written with color disabled")
	}
}

func TestPrinterOpenOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{w: buf, OpenOnly: true}
	p.Table(records)
	if strings.Contains(buf.String(), "CLOSED") || strings.Contains(buf.String(), "FILTERED") {
		t.Fatalf("non-open rows printed: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "OPEN") {
		t.Fatalf("open row missing: %q", buf.String())
	}
}

func TestSummarize(t *testing.T) {
	open, notOpen := Summarize(records)
	if open != 1 || notOpen != 2 {
		t.Fatalf("got %d open, %d not open", open, notOpen)
	}

	buf := &bytes.Buffer{}
	(&Printer{w: buf}).Summary(Summary{Target: "localhost", IP: "127.0.0.1", Open: open, NotOpen: notOpen, Saved: 3, DBPath: "x.db"})
	for _, want := range []string{"localhost (127.0.0.1)", "Open Ports", "Rows Saved     3 (x.db)"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("summary missing %q: %q", want, buf.String())
		}
	}
}

func TestPrinterHistory(t *testing.T) {
	buf := &bytes.Buffer{}
	(&Printer{w: buf}).History(nil)
	if !strings.Contains(buf.String(), "no scans recorded") {
		t.Fatalf("got %q", buf.String())
	}

	buf.Reset()
	(&Printer{w: buf}).History([]store.Row{{ID: 7, Target: "10.0.0.1", Port: 443, Status: "OPEN", Timestamp: "2024-01-01T00:00:00Z"}})
	if !strings.Contains(buf.String(), "7       10.0.0.1") {
		t.Fatalf("got %q", buf.String())
	}
}

func TestExportCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Export(buf, "CSV", FromRecords("10.0.0.1", "2024-01-01T00:00:00Z", records[:2])); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	want := []string{"10.0.0.1", "22", "OPEN", "SSH", "OpenSSH 8.9p1", "2024-01-01T00:00:00Z"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Errorf("column %s: got %q want %q", rows[0][i], rows[1][i], want[i])
		}
	}
}

func TestExportJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rows := []store.Row{
		{ID: 1, Target: "h", Port: 22, Status: "OPEN", Timestamp: "t"},
		{ID: 2, Target: "h", Port: 1, Status: "CLOSED", Timestamp: "t"},
		{ID: 3, Target: "h", Port: 65000, Status: "FILTERED", Timestamp: "t"},
	}
	if err := Export(buf, "json", FromRows(rows)); err != nil {
		t.Fatalf("export: %v", err)
	}

	var got []Entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Service != "SSH" || got[1].Service != "TCPMUX" || got[2].Service != scan.UnknownService {
		t.Errorf("unexpected services: %+v", got)
	}
	if strings.Contains(buf.String(), `"version"`) {
		t.Error("empty version should be omitted")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if err := Export(&bytes.Buffer{}, "xml", nil); err == nil {
		t.Fatal("expected error")
	}
}
