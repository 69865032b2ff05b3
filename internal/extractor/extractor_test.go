package extractor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestTextExtractorSanitizes(t *testing.T) {
	in := []byte("hello\x00world\x01\ntab\there\r\nüber")
	got, err := (&TextExtractor{}).Extract(bytes.NewReader(in))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.ContainsRune(got, 0) {
		t.Error("NUL byte survived sanitization")
	}
	if !strings.Contains(got, "hello world") {
		t.Errorf("got %q, want NUL replaced by space", got)
	}
	if !strings.Contains(got, "tab\there") {
		t.Error("tab should be preserved")
	}
	if !strings.Contains(got, "über") {
		t.Error("UTF-8 bytes should be preserved")
	}
}

func TestFactorySelection(t *testing.T) {
	f := NewFactory()

	if _, ok := f.ForFile("policy.PDF").(*PDFExtractor); !ok {
		t.Error("pdf extension should select PDFExtractor")
	}
	if _, ok := f.ForFile("audit.xlsx").(*ExcelExtractor); !ok {
		t.Error("xlsx extension should select ExcelExtractor")
	}
	if _, ok := f.ForFile("main.go").(*TextExtractor); !ok {
		t.Error("source files should select TextExtractor")
	}
	if _, ok := f.ForFile("noext").(*TextExtractor); !ok {
		t.Error("unknown extensions should select TextExtractor")
	}
}

func TestExcelExtractorRoundTrip(t *testing.T) {
	wb := excelize.NewFile()
	wb.SetCellValue("Sheet1", "A1", "control")
	wb.SetCellValue("Sheet1", "B1", "owner")
	wb.SetCellValue("Sheet1", "A2", "access review")
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := (&ExcelExtractor{}).Extract(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "# Sheet1") {
		t.Errorf("sheet header missing in %q", got)
	}
	if !strings.Contains(got, "control\towner") {
		t.Errorf("row cells not tab-joined in %q", got)
	}
	if !strings.Contains(got, "access review") {
		t.Errorf("second row missing in %q", got)
	}
}

func TestPDFExtractorRejectsGarbage(t *testing.T) {
	_, err := (&PDFExtractor{}).Extract(bytes.NewReader([]byte("not a pdf")))
	if err == nil {
		t.Fatal("expected error for non-PDF input")
	}
}
