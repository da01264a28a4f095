package util

import (
	"bufio"
	"os"
)

// CountNumLines counts the number of lines in a file
func CountNumLines(filepath string) (int64, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	fileScanner := bufio.NewScanner(file)
	var lines int64
	for fileScanner.Scan() {
		lines++
	}
	return lines, fileScanner.Err()
}
