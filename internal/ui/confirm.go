package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Confirm asks a yes/no question on stderr and reads the answer from stdin.
// Anything but y or yes is a no, including EOF.
func Confirm(prompt string) bool {
	return ConfirmFrom(os.Stdin, os.Stderr, prompt)
}

// ConfirmFrom is Confirm over arbitrary streams.
func ConfirmFrom(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render(prompt))
	switch readAnswer(in) {
	case "y", "yes":
		return true
	}
	return false
}

// ConfirmWord guards irreversible actions: the user must type word exactly.
func ConfirmWord(prompt, word string) bool {
	return ConfirmWordFrom(os.Stdin, os.Stderr, prompt, word)
}

// ConfirmWordFrom is ConfirmWord over arbitrary streams.
func ConfirmWordFrom(in io.Reader, out io.Writer, prompt, word string) bool {
	fmt.Fprintf(out, "%s\n%s ", StyleError.Render("⚠ "+prompt), StyleMeta.Render("Type "+word+" to continue:"))
	return readAnswer(in) == strings.ToLower(word)
}

func readAnswer(in io.Reader) string {
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line))
}
