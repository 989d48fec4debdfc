package output

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"portscan/scan"
	"portscan/store"
)

// Entry 导出的一行
type Entry struct {
	Target    string `json:"target"`
	Port      int    `json:"port"`
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp"`
}

var csvHeader = []string{"target", "port", "status", "service", "version", "timestamp"}

// FromRecords 本次扫描的结果
func FromRecords(target, timestamp string, records []scan.Record) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry{
			Target:    target,
			Port:      r.Port,
			Status:    r.Status.String(),
			Service:   r.Service,
			Version:   r.Version,
			Timestamp: timestamp,
		})
	}
	return entries
}

// FromRows 数据库中只保存了状态,服务名取IANA表
func FromRows(rows []store.Row) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		service := strings.ToUpper(scan.DescribePort(r.Port))
		if service == "" {
			service = scan.UnknownService
		}
		entries = append(entries, Entry{
			Target:    r.Target,
			Port:      r.Port,
			Status:    r.Status,
			Service:   service,
			Timestamp: r.Timestamp,
		})
	}
	return entries
}

// Export 以format(csv/json)写出所有条目
func Export(w io.Writer, format string, entries []Entry) error {
	switch strings.ToLower(format) {
	case "csv":
		return writeCSV(w, entries)
	case "json":
		return writeJSON(w, entries)
	}
	return errors.Errorf("unsupported export format %q", format)
}

func writeCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, e := range entries {
		err := cw.Write([]string{
			e.Target,
			strconv.Itoa(e.Port),
			e.Status,
			e.Service,
			strings.ToValidUTF8(e.Version, ""),
			e.Timestamp,
		})
		if err != nil {
			return errors.Wrap(err, "write csv")
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(entries), "write json")
}
