package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Repository", KeyRepository, "modules", Repository("modules")},
		{"Directory", KeyDirectory, "/srv/modules", Directory("/srv/modules")},
		{"Session", KeySession, "s1", Session("s1")},
		{"Package", KeyPackage, "com.example.core", Package("com.example.core")},
		{"Version", KeyVersion, "1.2.0", Version("1.2.0")},
		{"Location", KeyLocation, "/srv/modules/core.zip", Location("/srv/modules/core.zip")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Event", KeyEvent, "package_added", Event("package_added")},
		{"Result", KeyResult, "reconciled", Result("reconciled")},
		{"Subject", KeySubject, "pkgrepo.events", Subject("pkgrepo.events")},
		{"Addr", KeyAddr, "127.0.0.1:8085", Addr("127.0.0.1:8085")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if got := Duration(1500 * time.Microsecond).Value.Float64(); got != 1.5 {
		t.Fatalf("Duration: expected 1.5, got %v", got)
	}
	if got := Interval(10 * time.Millisecond).Value.Int64(); got != 10 {
		t.Fatalf("Interval: expected 10, got %v", got)
	}
	if got := Count(3).Value.Int64(); got != 3 {
		t.Fatalf("Count: expected 3, got %v", got)
	}
}
