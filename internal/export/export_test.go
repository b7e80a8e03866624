package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRecords() []ClipMetadataRecord {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return []ClipMetadataRecord{
		{Index: 0, SourceVideo: "/in/talk.mp4", Start: 0, End: 30, OutputPath: "/out/p/clips/talk_clip_001.mp4", CreatedAt: created},
		{Index: 1, SourceVideo: "/in/talk.mp4", Start: 30, End: 60, OutputPath: "/out/p/clips/talk_clip_002.mp4", CreatedAt: created},
		{Index: 2, SourceVideo: "/in/talk.mp4", Start: 60, End: 95, OutputPath: "/out/p/clips/talk_clip_003.mp4", CreatedAt: created},
	}
}

func TestWriteMetadata_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata", "project_metadata.json")
	if err := WriteMetadata(path, sampleRecords()); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []ClipMetadataRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[2].Start != 60 || got[2].End != 95 {
		t.Errorf("boundaries lost: %+v", got[2])
	}
	if got[1].SourceVideo != "/in/talk.mp4" {
		t.Errorf("source lost: %+v", got[1])
	}
}

func TestWriteMetadata_FieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	if err := WriteMetadata(path, sampleRecords()[:1]); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	for _, field := range []string{`"index"`, `"source_video"`, `"start"`, `"end"`, `"output_path"`, `"created_at"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("missing field %s", field)
		}
	}
}

func TestWriteMetadata_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	if err := WriteMetadata(path, nil); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("empty document must be an array, got %q", data)
	}
}

func TestTimecode(t *testing.T) {
	cases := []struct {
		seconds float64
		fps     float64
		want    string
	}{
		{0, 30, "00:00:00:00"},
		{1.5, 30, "00:00:01:15"},
		{59.999, 30, "00:00:59:29"},
		{60, 30, "00:01:00:00"},
		{3661.25, 24, "01:01:01:06"},
		{-5, 30, "00:00:00:00"},
	}
	for _, tt := range cases {
		if got := Timecode(tt.seconds, tt.fps); got != tt.want {
			t.Errorf("Timecode(%v, %v) = %q, want %q", tt.seconds, tt.fps, got, tt.want)
		}
	}
}

func TestWriteEDL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.edl")
	if err := WriteEDL(path, "demo", 30, sampleRecords()); err != nil {
		t.Fatalf("WriteEDL: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "TITLE: demo\n") {
		t.Errorf("missing title header:\n%s", content)
	}
	if !strings.Contains(content, "FCM: NON-DROP FRAME") {
		t.Error("missing FCM header")
	}
	// Third event: source 60-95, record position 60-95 (clips are back
	// to back and all prior clips sum to 60s).
	if !strings.Contains(content, "003  AX       V     C        00:01:00:00 00:01:35:00 00:01:00:00 00:01:35:00") {
		t.Errorf("missing third event:\n%s", content)
	}
	if !strings.Contains(content, "* FROM CLIP NAME: talk_clip_003.mp4") {
		t.Error("missing clip name comment")
	}
}

func TestWriteEDL_RecordTimelineIsSequential(t *testing.T) {
	// Source spans with a gap: record side must still be back to back.
	records := []ClipMetadataRecord{
		{Index: 0, Start: 10, End: 20, OutputPath: "a.mp4"},
		{Index: 1, Start: 50, End: 65, OutputPath: "b.mp4"},
	}
	path := filepath.Join(t.TempDir(), "t.edl")
	if err := WriteEDL(path, "gap", 30, records); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "002  AX       V     C        00:00:50:00 00:01:05:00 00:00:10:00 00:00:25:00") {
		t.Errorf("second event record range wrong:\n%s", data)
	}
}

func TestWriteResolveScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolve_project", "project_import.py")
	if err := WriteResolveScript(path, "demo_project", sampleRecords()); err != nil {
		t.Fatalf("WriteResolveScript: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		`PROJECT_NAME = "demo_project"`,
		`"in_point_seconds": 60`,
		`"out_point_seconds": 95`,
		"/out/p/clips/talk_clip_003.mp4",
		"GetProjectManager()",
		"CreateTimelineFromClips",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("script missing %q", want)
		}
	}
}
