package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LogEntry represents a parsed log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader provides functionality to read and stream log files
type LogReader struct {
	logsDir      string
	pollInterval time.Duration
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{
		logsDir:      logsDir,
		pollInterval: 200 * time.Millisecond,
	}
}

// GetLogPath returns the path to a category log file for a specific date
func (lr *LogReader) GetLogPath(category LogCategory, date time.Time) string {
	return CategoryLogPath(lr.logsDir, category, date)
}

// ReadLogs returns the last limit entries of a category log file.
// A missing file yields no entries.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.GetLogPath(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, ParseLogLine(line, category))
	}
	return entries, nil
}

// SearchLogs returns the last limit entries whose message, level or fields contain query
func (lr *LogReader) SearchLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	entries, err := lr.ReadLogs(category, date, 0)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var filtered []LogEntry
	for _, entry := range entries {
		if entry.matches(query) {
			filtered = append(filtered, entry)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

func (e LogEntry) matches(query string) bool {
	if strings.Contains(strings.ToLower(e.Message), query) ||
		strings.Contains(strings.ToLower(e.Level), query) {
		return true
	}
	for k, v := range e.Fields {
		if strings.Contains(strings.ToLower(fmt.Sprintf("%s=%v", k, v)), query) {
			return true
		}
	}
	return false
}

// TailLogs sends entries appended to today's category log until ctx is done
func (lr *LogReader) TailLogs(ctx context.Context, category LogCategory, entries chan<- LogEntry) error {
	path := lr.GetLogPath(category, time.Now())

	var file *os.File
	for file == nil {
		f, err := os.Open(path)
		switch {
		case err == nil:
			file = f
		case os.IsNotExist(err):
			if err := lr.sleep(ctx); err != nil {
				return nil
			}
		default:
			return err
		}
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if errors.Is(err, io.EOF) {
			if err := lr.sleep(ctx); err != nil {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}

		line := strings.TrimSpace(partial)
		partial = ""
		if line == "" {
			continue
		}
		select {
		case entries <- ParseLogLine(line, category):
		case <-ctx.Done():
			return nil
		}
	}
}

func (lr *LogReader) sleep(ctx context.Context) error {
	timer := time.NewTimer(lr.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseLogLine decodes one JSON line written by MultiLogger.
// Lines that are not JSON become a plain info entry.
func ParseLogLine(line string, category LogCategory) LogEntry {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{
			Level:    "info",
			Message:  line,
			Category: string(category),
		}
	}

	entry := LogEntry{Category: string(category)}
	take := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				delete(raw, k)
				if s, ok := v.(string); ok {
					return s
				}
				return fmt.Sprint(v)
			}
		}
		return ""
	}
	entry.Timestamp = take("ts", "timestamp")
	entry.Level = take("level")
	entry.Message = take("msg", "message")
	if c := take("category"); c != "" {
		entry.Category = c
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}
