// Package testutils builds the target programs the package tests launch
// under tracing. The programs are built once at init time.
package testutils

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// goBinaryPath is the path to the go binary used to build this test
// program. This go binary is used to build the testdata.
var goBinaryPath = filepath.Join(runtime.GOROOT(), "bin", "go")

var (
	// ProgramInfloop sleeps in a loop forever.
	ProgramInfloop string
	// ProgramHelloworld prints one line and exits with code 0.
	ProgramHelloworld string
	// ProgramExitcode exits with code 3 without printing.
	ProgramExitcode string
)

func init() {
	_, srcFilename, _, _ := runtime.Caller(0)
	srcDirname := filepath.Dir(srcFilename)

	ProgramInfloop = filepath.Join(srcDirname, "testdata", "infloop")
	if err := buildProgram(ProgramInfloop); err != nil {
		panic(err)
	}

	ProgramHelloworld = filepath.Join(srcDirname, "testdata", "helloworld")
	if err := buildProgram(ProgramHelloworld); err != nil {
		panic(err)
	}

	ProgramExitcode = filepath.Join(srcDirname, "testdata", "exitcode")
	if err := buildProgram(ProgramExitcode); err != nil {
		panic(err)
	}
}

func buildProgram(programName string) error {
	src := programName + ".go"
	if out, err := exec.Command(goBinaryPath, "build", "-o", programName, src).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to build %s: %v\n%v", src, err, string(out))
	}
	return nil
}
