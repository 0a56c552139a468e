package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func main() {
	bin, err := exec.LookPath("taskmesh")
	if err != nil {
		fmt.Fprintln(os.Stderr, "tm: taskmesh not found on PATH")
		os.Exit(1)
	}
	if err := syscall.Exec(bin, append([]string{"taskmesh"}, os.Args[1:]...), os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "tm: %v\n", err)
		os.Exit(1)
	}
}
