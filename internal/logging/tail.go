package logging

import (
	"bufio"
	"os"
)

// TailLastNLines returns up to the last n lines of the file at path.
func TailLastNLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if n < 0 {
		n = 0
	}

	// errors.log is truncated on every start, so scanning it whole is fine.
	buf := make([]string, 0, n)
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if n <= 0 {
			continue
		}
		if len(buf) < n {
			buf = append(buf, line)
			continue
		}
		copy(buf, buf[1:])
		buf[n-1] = line
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}
