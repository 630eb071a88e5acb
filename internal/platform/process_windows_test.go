//go:build windows

package platform

import "testing"

func TestTasklistParsing(t *testing.T) {
	out := "\"Mihomo.exe\",\"812\",\"Console\",\"1\",\"23,456 K\"\r\n"
	recs := tasklistRecords(out)
	if len(recs) != 1 || recs[0][1] != "812" {
		t.Fatalf("tasklistRecords() = %v", recs)
	}

	mem, err := parseTasklistMemory(recs[0][4])
	if err != nil || mem != 23456*1024 {
		t.Fatalf("parseTasklistMemory() = %d, %v", mem, err)
	}

	if recs := tasklistRecords("INFO: No tasks are running which match the specified criteria.\r\n"); len(recs) != 1 || len(recs[0]) != 1 {
		t.Fatalf("info line parsed as %v", recs)
	}
}
