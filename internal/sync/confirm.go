package sync

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer is the operator-confirmation port for interactive runs. The
// reconcilers compute their decision first and ask afterwards, so tests can
// drive the flow without a console.
type Confirmer interface {
	// Confirm asks the operator to approve one action. Anything other than
	// an explicit yes is a rejection.
	Confirm(prompt string) bool
}

// ConsoleConfirmer reads confirmations line by line. Accepts "y" and "yes"
// case-insensitively; everything else, including an empty line, denies.
type ConsoleConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleConfirmer builds a confirmer over the given streams.
func NewConsoleConfirmer(in io.Reader, out io.Writer) *ConsoleConfirmer {
	return &ConsoleConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *ConsoleConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
