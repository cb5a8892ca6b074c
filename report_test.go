package hwpstyle

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestRunReport(t *testing.T) {
	template := compressedDoc(t, "template.hwp", examDocInfo(), nil)
	doc := compressedDoc(t, "doc.hwp", strippedDocInfo(), examBody())

	e := New(Options{StyleSource: template})
	report, err := e.Run(doc)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Path != doc {
		t.Errorf("Path = %q", report.Path)
	}
	if !report.Changed {
		t.Error("Changed = false")
	}
	if report.Sections != 1 {
		t.Errorf("Sections = %d, want 1", report.Sections)
	}
	for _, name := range []string{streamDocInfo, "BodyText/Section0"} {
		sum, ok := report.Streams[name]
		if !ok || len(sum) != 16 {
			t.Errorf("Streams[%s] = %q, %v", name, sum, ok)
		}
	}

	// An identical second run yields identical checksums and Changed=false.
	again, err := New(Options{StyleSource: template}).Run(doc)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if again.Changed {
		t.Error("second run Changed = true")
	}
	for name, sum := range report.Streams {
		if again.Streams[name] != sum {
			t.Errorf("checksum of %s drifted: %s != %s", name, again.Streams[name], sum)
		}
	}
}

func TestReportJSON(t *testing.T) {
	report := &Report{
		Path:     "exam.hwp",
		Changed:  true,
		Sections: 2,
		Streams:  map[string]string{"DocInfo": "00ff00ff00ff00ff"},
		Warnings: []string{"question style not found"},
	}

	out, err := report.JSON()
	if err != nil {
		t.Fatalf("JSON error: %v", err)
	}

	var back Report
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if back.Path != report.Path || back.Changed != report.Changed || back.Sections != report.Sections {
		t.Errorf("round trip = %+v", back)
	}
	if !strings.Contains(string(out), `"changed":true`) {
		t.Errorf("json = %s", out)
	}

	// Empty warnings stay out of the payload.
	report.Warnings = nil
	out, _ = report.JSON()
	if strings.Contains(string(out), "warnings") {
		t.Errorf("json = %s", out)
	}
}
