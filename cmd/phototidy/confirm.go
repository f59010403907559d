package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// confirm asks a yes/no question on stdin. Anything but y or yes is no,
// and so is a non-interactive stdin.
func confirm(format string, args ...any) bool {
	if !isTerminal(os.Stdin) {
		return false
	}
	fmt.Printf(format+" [y/N] ", args...)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
