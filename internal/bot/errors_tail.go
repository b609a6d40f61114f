package bot

import (
	"bufio"
	"os"
	"strings"
)

const maxTailLine = 1024

// TailLastNLines returns up to n trailing lines of path using a ring buffer,
// so memory stays bounded however large the log grows.
func TailLastNLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, n)
	total := 0
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	for s.Scan() {
		line := s.Text()
		if len(line) > maxTailLine {
			line = line[:maxTailLine] + "…"
		}
		ring[total%n] = line
		total++
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if total <= n {
		return ring[:total], nil
	}
	start := total % n
	return append(ring[start:], ring[:start]...), nil
}

// formatTail joins lines newest-last and drops the oldest ones until the
// result fits in limit characters.
func formatTail(lines []string, limit int) string {
	if len(lines) == 0 {
		return "📋 errors.log пуст"
	}
	for len(lines) > 1 && len([]rune(strings.Join(lines, "\n"))) > limit {
		lines = lines[1:]
	}
	out := strings.Join(lines, "\n")
	if r := []rune(out); len(r) > limit {
		out = string(r[len(r)-limit:])
	}
	return out
}
