package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const ianaCSV = "https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv"

const header = `package scan

// knownPorts 常见TCP服务端口及其IANA服务名,只是IANA表的一个子集,端口列表以本文件为准
// 服务名可以用 tools/update.go 从IANA重新获取
// data from ` + ianaCSV + `
var knownPorts = map[int]string{
`

//用于刷新已知端口的服务名,由scan包中的go:generate调用,以执行目录为准
//只更新文件中已有端口的名字,不会加入新的端口
func main() {
	out := flag.String("o", "known.go", "port table to refresh")
	flag.Parse()

	current, err := readKnown(*out)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Get(ianaCSV)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("download %s: %s", ianaCSV, resp.Status)
	}
	iana, err := parseIANA(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	src, err := render(refresh(current, iana))
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Infof("refreshed %d ports in %s", len(current), *out)
}

// readKnown 解析现有的端口表,得到端口列表
func readKnown(path string) (map[int]string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, nil, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	var lit *ast.CompositeLit
	ast.Inspect(f, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok || len(spec.Names) != 1 || spec.Names[0].Name != "knownPorts" || len(spec.Values) != 1 {
			return true
		}
		lit, _ = spec.Values[0].(*ast.CompositeLit)
		return false
	})
	if lit == nil {
		return nil, errors.Errorf("%s: knownPorts not found", path)
	}

	ports := map[int]string{}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		k, kok := kv.Key.(*ast.BasicLit)
		v, vok := kv.Value.(*ast.BasicLit)
		if !kok || !vok {
			continue
		}
		port, err := strconv.Atoi(k.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: port %s", path, k.Value)
		}
		name, err := strconv.Unquote(v.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: name of %d", path, port)
		}
		ports[port] = name
	}
	return ports, nil
}

// parseIANA 只保留tcp、有服务名、单个端口的记录,同一端口取第一个名字
func parseIANA(r io.Reader) (map[int]string, error) {
	names := map[int]string{}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	for {
		// read one row from csv
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read iana csv")
		}

		if len(record) < 3 || record[2] != "tcp" || record[0] == "" {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		if _, ok := names[port]; !ok {
			names[port] = strings.ToLower(record[0])
		}
	}
	return names, nil
}

// refresh 端口列表不变,IANA中找不到的端口保留原来的名字
func refresh(current, iana map[int]string) map[int]string {
	out := make(map[int]string, len(current))
	for port, name := range current {
		if n, ok := iana[port]; ok {
			name = n
		}
		out[port] = name
	}
	return out
}

func render(ports map[int]string) ([]byte, error) {
	keys := make([]int, 0, len(ports))
	for p := range ports {
		keys = append(keys, p)
	}
	sort.Ints(keys)

	buf := &bytes.Buffer{}
	buf.WriteString(header)
	for _, p := range keys {
		fmt.Fprintf(buf, "\t%d: %q,\n", p, ports[p])
	}
	buf.WriteString("}\n")
	return format.Source(buf.Bytes())
}
