package pathfilter_test

import (
	"testing"

	"github.com/outcomeops/analytics-ingest/internal/pathfilter"
)

func TestExcludeByExtension(t *testing.T) {
	f := pathfilter.New([]string{".css", ".js"}, nil)

	if !f.Exclude("/app.CSS") {
		t.Fatalf("expected case-insensitive suffix match to exclude /app.CSS")
	}
	if f.Exclude("/index.html") {
		t.Fatalf("did not expect /index.html to be excluded")
	}
}

func TestExcludeByPrefix(t *testing.T) {
	f := pathfilter.New(nil, []string{"/wp-admin", "/.well-known/scanner"})

	if !f.Exclude("/WP-ADMIN/setup.php") {
		t.Fatalf("expected case-insensitive prefix match to exclude /WP-ADMIN/...")
	}
	if f.Exclude("/about") {
		t.Fatalf("did not expect /about to be excluded")
	}
}

func TestEmptyConfigExcludesNothing(t *testing.T) {
	f := pathfilter.New(nil, nil)
	if f.Exclude("/anything.css") {
		t.Fatalf("empty config must exclude nothing (P5 baseline)")
	}
}

// TestMonotonicP5 checks that adding an exclusion rule never increases the
// number of paths that pass the filter.
func TestMonotonicP5(t *testing.T) {
	paths := []string{"/", "/app.css", "/app.js", "/about", "/wp-admin/x"}

	before := pathfilter.New(nil, nil)
	after := pathfilter.New([]string{".css"}, []string{"/wp-admin"})

	keptBefore, keptAfter := 0, 0
	for _, p := range paths {
		if !before.Exclude(p) {
			keptBefore++
		}
		if !after.Exclude(p) {
			keptAfter++
		}
	}
	if keptAfter > keptBefore {
		t.Fatalf("adding exclusion rules must not increase kept count: before=%d after=%d", keptBefore, keptAfter)
	}
}
