package fibronet

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"
)

func TestDetectDataType(t *testing.T) {
	plain := []byte("gene\tbarcode\tvalue\n")

	br := bufio.NewReader(bytes.NewReader(plain))
	dt, err := DetectDataType(br)
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeNoCompression {
		t.Errorf("expected no compression, got %v", dt)
	}

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	br = bufio.NewReader(bytes.NewReader(gzBuf.Bytes()))
	dt, err = DetectDataType(br)
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeGzip {
		t.Errorf("expected gzip, got %v", dt)
	}

	// Peeking must not consume the stream
	rest, err := io.ReadAll(br)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rest, gzBuf.Bytes()) {
		t.Error("detection consumed bytes from the reader")
	}
}

func TestMaybeDecompressRoundTrip(t *testing.T) {
	plain := []byte("chr1:100-200\t0.5\nchr2:300-400\t1.5\n")

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	for _, input := range [][]byte{plain, gzBuf.Bytes()} {
		r, err := MaybeDecompressBytes(input)
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("round trip mismatch: got %q", got)
		}
	}
}

func TestDetermineDelimiter(t *testing.T) {
	tab := "barcode\tcluster\tpseudotime\nAAAC\tfib.1\t0.25\nGGGT\tfib.2\t0.75\n"
	if d := DetermineDelimiter(strings.NewReader(tab)); d != '\t' {
		t.Errorf("expected tab, got %q", d)
	}

	comma := "barcode,cluster,pseudotime\nAAAC,fib.1,0.25\nGGGT,fib.2,0.75\n"
	if d := DetermineDelimiter(strings.NewReader(comma)); d != ',' {
		t.Errorf("expected comma, got %q", d)
	}
}
