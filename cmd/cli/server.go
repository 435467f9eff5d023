package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	serverBinaryName   = "yt-fetch-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

var healthClient = &http.Client{Timeout: time.Second}

// isServerRunning reports whether /health answers at serverURL
func isServerRunning() bool {
	resp, err := healthClient.Get(serverURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// serverCandidates lists where the server binary is looked for, in order
func serverCandidates() []string {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), serverBinaryName))
	}
	if p, err := exec.LookPath(serverBinaryName); err == nil {
		candidates = append(candidates, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, "go", "bin", serverBinaryName),
			filepath.Join(home, ".local", "bin", serverBinaryName))
	}
	return append(candidates, "/usr/local/bin/"+serverBinaryName, "/usr/bin/"+serverBinaryName)
}

func findServerBinary() (string, error) {
	for _, p := range serverCandidates() {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s binary not found", serverBinaryName)
}

// startServerBackground launches the server detached from this terminal.
// Its output goes to a log file in the temp directory.
func startServerBackground() (string, error) {
	serverPath, err := findServerBinary()
	if err != nil {
		return "", err
	}

	logPath := filepath.Join(os.TempDir(), serverBinaryName+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open server log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(serverPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start server: %w", err)
	}
	// The child outlives us; Release drops our handle without waiting
	if err := cmd.Process.Release(); err != nil {
		return "", err
	}
	return logPath, nil
}

// waitForServerReady polls /health until it answers or timeout passes
func waitForServerReady(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	for {
		if isServerRunning() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server did not start within %v", timeout)
		case <-ticker.C:
		}
	}
}

// ensureServerRunning starts the server if nothing answers at serverURL
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	logPath, err := startServerBackground()
	if err != nil {
		return err
	}
	if err := waitForServerReady(serverStartTimeout); err != nil {
		return fmt.Errorf("%w (see %s)", err, logPath)
	}

	fmt.Fprintln(os.Stderr, "Server started successfully")
	return nil
}
