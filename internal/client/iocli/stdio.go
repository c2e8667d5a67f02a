package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdio реализует IO поверх произвольных потоков ввода и вывода
type Stdio struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdio returns IO bound to the process stdin and stdout
func NewStdio() IO {
	return New(os.Stdin, os.Stdout)
}

// New returns IO reading from in and writing to out
func New(in io.Reader, out io.Writer) IO {
	return &Stdio{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// ReadInput печатает приглашение и читает одну строку без завершающих пробелов.
// Последняя строка без перевода строки тоже считается вводом.
func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
