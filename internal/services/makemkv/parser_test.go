package makemkv

import (
	"strings"
	"testing"
)

func TestParseDriveListSkipsEmptyBays(t *testing.T) {
	lines := []string{
		`MSG:1005,0,1,"MakeMKV v1.17 started","%1 started","MakeMKV v1.17"`,
		`DRV:0,2,999,12,"BD-RE HL-DT-ST BD-RE WH16NS40","THE_MATRIX","/dev/sr0"`,
		`DRV:1,1,999,1,"BD-ROM PIONEER BD-ROM BDR-XD07","","/dev/sr1"`,
		`DRV:2,256,999,0,"","",""`,
		`garbage line`,
	}
	drives := ParseDriveList(lines)
	if len(drives) != 2 {
		t.Fatalf("expected 2 drives, got %d: %+v", len(drives), drives)
	}
	if drives[0].ID != 0 || drives[0].Device != "/dev/sr0" || drives[0].DiscLabel != "THE_MATRIX" {
		t.Fatalf("unexpected drive 0: %+v", drives[0])
	}
	if drives[1].ID != 1 || drives[1].DiscLabel != "" {
		t.Fatalf("unexpected drive 1: %+v", drives[1])
	}
	if !strings.Contains(drives[0].Model, "WH16NS40") {
		t.Fatalf("model not parsed: %q", drives[0].Model)
	}
}

func TestParseDiscInfoBuildsTitles(t *testing.T) {
	lines := []string{
		`CINFO:2,0,"THE_MATRIX"`,
		`TINFO:0,2,0,"The Matrix"`,
		`TINFO:0,8,0,"24"`,
		`TINFO:0,9,0,"2:16:18"`,
		`TINFO:0,10,0,"30.1 GB"`,
		`TINFO:0,11,0,"32345678901"`,
		`TINFO:0,27,0,"title_t00.mkv"`,
		`TINFO:1,2,0,"Featurette"`,
		`TINFO:1,9,0,"0:22:10"`,
		`TINFO:bogus`,
	}
	info := ParseDiscInfo(lines)
	if info.Name != "THE_MATRIX" {
		t.Fatalf("disc name = %q", info.Name)
	}
	if info.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", info.Skipped)
	}
	if len(info.Titles) != 2 {
		t.Fatalf("titles = %d", len(info.Titles))
	}
	main := info.Titles[0]
	if main.Index != 0 || main.Name != "The Matrix" || main.Chapters != 24 {
		t.Fatalf("unexpected main title: %+v", main)
	}
	if main.Duration != 2*3600+16*60+18 {
		t.Fatalf("duration = %d", main.Duration)
	}
	if main.Bytes != 32345678901 || main.FileName != "title_t00.mkv" {
		t.Fatalf("size attrs not parsed: %+v", main)
	}
	if info.Titles[1].Duration != 22*60+10 {
		t.Fatalf("second title duration = %d", info.Titles[1].Duration)
	}
}

func TestParseDiscInfoEmptyOutput(t *testing.T) {
	info := ParseDiscInfo(nil)
	if len(info.Titles) != 0 || info.Skipped != 0 || info.Name != "" {
		t.Fatalf("expected empty inventory, got %+v", info)
	}
}

func TestParseDiscInfoVolumeNameFallback(t *testing.T) {
	info := ParseDiscInfo([]string{`CINFO:32,0,"BACKUP_DISC"`})
	if info.Name != "BACKUP_DISC" {
		t.Fatalf("name = %q", info.Name)
	}
}

func TestParseProgress(t *testing.T) {
	update, ok := ParseProgress("PRGV:1000,32768,65536")
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if update.Percent != 50 {
		t.Fatalf("percent = %f", update.Percent)
	}
	if _, ok := ParseProgress("PRGV:1,2"); ok {
		t.Fatal("short line should not parse")
	}
	if _, ok := ParseProgress("PRGC:0,0,\"Analyzing\""); ok {
		t.Fatal("non PRGV line should not parse")
	}
}

func TestParseMessage(t *testing.T) {
	msg, ok := ParseMessage(`MSG:5010,0,1,"Failed to open disc","Failed to open disc"`)
	if !ok {
		t.Fatal("expected message to parse")
	}
	if msg.Code != 5010 || msg.Text != "Failed to open disc" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestIsFatalMessage(t *testing.T) {
	if !IsFatalMessage(`MSG:5003,0,2,"Failed to save title 0 to file /x.mkv","..."`) {
		t.Fatal("expected fatal")
	}
	if IsFatalMessage(`MSG:5005,0,0,"Copy complete","..."`) {
		t.Fatal("copy complete is not fatal")
	}
}

func TestSplitRobotFieldsKeepsQuotedCommas(t *testing.T) {
	fields := splitRobotFields(`0,2,999,12,"BD-RE, fancy","DISC","/dev/sr0"`)
	if len(fields) != 7 {
		t.Fatalf("fields = %d: %v", len(fields), fields)
	}
	if fields[4] != "BD-RE, fancy" {
		t.Fatalf("quoted comma split: %q", fields[4])
	}
}
