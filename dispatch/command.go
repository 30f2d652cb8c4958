package dispatch

import (
	"strconv"
	"strings"
)

// Message is one inbound chat line.
type Message struct {
	Channel string
	User    string
	Text    string
}

// ParseCommand splits a chat line into a lowercase command keyword (without the leading
// '!') and the remaining words joined by single spaces. ok is false for lines that are not
// commands.
func ParseCommand(line string) (cmd, arg string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") {
		return "", "", false
	}
	cmd = strings.ToLower(strings.TrimPrefix(fields[0], "!"))
	if cmd == "" {
		return "", "", false
	}
	return cmd, strings.Join(fields[1:], " "), true
}

// ParseQuantity strips a trailing "x<N>" token (N >= 1) from arg. Without one the whole
// argument is the item and the quantity is 1.
func ParseQuantity(arg string) (item string, qty int64) {
	fields := strings.Fields(arg)
	if len(fields) < 2 {
		return strings.Join(fields, " "), 1
	}
	last := strings.ToLower(fields[len(fields)-1])
	if n, ok := quantityToken(last); ok {
		return strings.Join(fields[:len(fields)-1], " "), n
	}
	return strings.Join(fields, " "), 1
}

func quantityToken(tok string) (int64, bool) {
	if len(tok) < 2 || tok[0] != 'x' {
		return 0, false
	}
	digits := tok[1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
