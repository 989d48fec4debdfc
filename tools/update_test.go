package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

const knownPath = "../scan/known.go"

func TestRenderReproducesCommittedTable(t *testing.T) {
	current, err := readKnown(knownPath)
	if err != nil {
		t.Fatalf("readKnown: %v", err)
	}
	if len(current) == 0 {
		t.Fatal("empty port table")
	}

	src, err := render(current)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	committed, err := os.ReadFile(knownPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(src, committed) {
		t.Fatalf("scan/known.go differs from generator output:\n%s", src)
	}
}

func TestParseIANA(t *testing.T) {
	csv := `Service Name,Port Number,Transport Protocol,Description
tcpmux,1,tcp,TCP Port Service Multiplexer
tcpmux,1,udp,TCP Port Service Multiplexer
http,80,tcp,World Wide Web HTTP
www,80,tcp,World Wide Web HTTP
,81,tcp,Unassigned
XmlIpcRegSvc,9092,tcp,Xml-Ipc Server Reg
dynamic,49152-65535,tcp,Dynamic Ports
`
	names, err := parseIANA(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parseIANA: %v", err)
	}
	want := map[int]string{1: "tcpmux", 80: "http", 9092: "xmlipcregsvc"}
	if len(names) != len(want) {
		t.Fatalf("got %v want %v", names, want)
	}
	for port, name := range want {
		if names[port] != name {
			t.Errorf("port %d: got %q want %q", port, names[port], name)
		}
	}
}

func TestRefreshKeepsPortSubset(t *testing.T) {
	current := map[int]string{22: "old-ssh", 9999: "custom"}
	iana := map[int]string{22: "ssh", 23: "telnet"}

	got := refresh(current, iana)
	if len(got) != 2 {
		t.Fatalf("refresh must not add ports: %v", got)
	}
	if got[22] != "ssh" || got[9999] != "custom" {
		t.Fatalf("unexpected names: %v", got)
	}
}
