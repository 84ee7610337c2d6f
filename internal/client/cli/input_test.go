package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("192.168.0.100:6969\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Server [127.0.0.1:6969]", &out)
	if err != nil || got != "192.168.0.100:6969" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if !strings.Contains(out.String(), "Server [127.0.0.1:6969]") {
		t.Fatalf("prompt missing from output: %q", out.String())
	}
}

func TestGetSimpleText_EOFReturnsPartialLine(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Server", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleText_TrimsWhitespace(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  host:7000  \n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Server", &out)
	if err != nil || got != "host:7000" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}
