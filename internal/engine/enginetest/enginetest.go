// Package enginetest installs shell-script stand-ins for the scPDSI engine so
// tests can exercise the full workspace round trip without the real binary.
package enginetest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/couchcryptid/palmer-drought-service/internal/engine"
)

// Behavior selects what the fake engine does when invoked.
type Behavior int

const (
	// Succeed validates the workspace and writes both tables for start..end.
	Succeed Behavior = iota
	// Fail prints to stderr and exits with status 3.
	Fail
	// Hang sleeps until killed.
	Hang
	// NoOutput exits 0 without writing any table.
	NoOutput
	// Garbage writes tables that are not fixed-width rows.
	Garbage
)

// FailStderr is what the Fail behavior prints.
const FailStderr = "scpdsi: cannot read parameter file"

// OriginalValues and SelfCalibratedValues are written for every year by
// Succeed.
var (
	OriginalValues       = [12]float64{-1.25, -0.5, 0, 0.75, 1.5, 2.25, -2.25, -1.5, -0.75, 0, 0.5, 1.25}
	SelfCalibratedValues = [12]float64{-0.8, -0.4, 0, 0.4, 0.8, 1.2, -1.2, -0.8, -0.4, 0, 0.4, 0.8}
)

// Install writes a fake engine with behavior b under a fresh root and returns
// that root. Tests are skipped on platforms without /bin/sh.
func Install(t testing.TB, b Behavior) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine requires a POSIX shell")
	}

	root := t.TempDir()
	rel, ok := engine.DefaultBinaries[runtime.GOOS]
	if !ok {
		t.Skipf("no engine layout for %s", runtime.GOOS)
	}
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create engine dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(Script(b)), 0o755); err != nil { //nolint:gosec // test executable
		t.Fatalf("write fake engine: %v", err)
	}
	return root
}

// Options returns invoker options pointing at root.
func Options(root string) engine.Options {
	return engine.Options{Root: root}
}

// Script renders the shell source for b.
func Script(b Behavior) string {
	var s strings.Builder
	s.WriteString("#!/bin/sh\n")
	switch b {
	case Fail:
		fmt.Fprintf(&s, "echo %q >&2\nexit 3\n", FailStderr)
	case Hang:
		s.WriteString("exec sleep 30\n")
	case NoOutput:
		s.WriteString("exit 0\n")
	case Garbage:
		s.WriteString(prologue)
		s.WriteString(`echo "not a table" > monthly/original/PDSI.tbl
echo "not a table" > monthly/self_cal/PDSI.tbl
`)
	default:
		s.WriteString(prologue)
		fmt.Fprintf(&s, `y=$start
while [ "$y" -le "$end" ]; do
	printf '%%5d%%s\n' "$y" '%s' >> monthly/original/PDSI.tbl
	printf '%%5d%%s\n' "$y" '%s' >> monthly/self_cal/PDSI.tbl
	y=$((y + 1))
done
`, fields(OriginalValues), fields(SelfCalibratedValues))
	}
	return s.String()
}

// prologue checks the command line, the working directory and the input
// files, then creates empty output tables.
const prologue = `if [ "$1" != "-m" ] || [ "$2" != "-i" ] || [ $# -ne 5 ]; then
	echo "usage: scpdsi -m -i DIR START END" >&2
	exit 64
fi
dir=$3
start=$4
end=$5
if [ "$(pwd -P)" != "$(cd "$dir" && pwd -P)" ]; then
	echo "working directory is not $dir" >&2
	exit 65
fi
for f in monthly_T monthly_P mon_T_normal mon_P_normal parameter; do
	if [ ! -s "$f" ]; then
		echo "missing input $f" >&2
		exit 66
	fi
done
rows=$(grep -c . monthly_T)
if [ "$rows" -ne $((end - start + 2)) ]; then
	echo "monthly_T has $rows rows" >&2
	exit 67
fi
mkdir -p monthly/original monthly/self_cal
: > monthly/original/PDSI.tbl
: > monthly/self_cal/PDSI.tbl
`

func fields(vals [12]float64) string {
	var b strings.Builder
	for _, v := range vals {
		fmt.Fprintf(&b, "%7.2f", v)
	}
	return b.String()
}
