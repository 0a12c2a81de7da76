package e2e

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

var (
	appURL string
)

func TestMain(m *testing.M) {
	os.Exit(runTestMain(m))
}

func runTestMain(m *testing.M) int {
	// go test ./e2e/... runs from the e2e directory, so the server package
	// is at ../cmd/server.
	buildPath := filepath.Join(os.TempDir(), "gym-manager-test")
	cmd := exec.Command("go", "build", "-o", buildPath, "../cmd/server")
	if _, err := os.Stat("../cmd/server"); os.IsNotExist(err) {
		if _, err := os.Stat("cmd/server"); err == nil {
			cmd = exec.Command("go", "build", "-o", buildPath, "./cmd/server")
		} else {
			fmt.Println("Could not find cmd/server to build")
			return 1
		}
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		fmt.Printf("Failed to build app: %v\n%s\n", err, output)
		return 1
	}
	defer os.Remove(buildPath)

	dataDir, err := os.MkdirTemp("", "gym-e2e")
	if err != nil {
		fmt.Printf("Failed to create data dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dataDir)

	port := "8081"
	appURL = "http://localhost:" + port

	serverCmd := exec.Command(buildPath)
	serverCmd.Env = append(os.Environ(),
		"PORT="+port,
		"DB_PATH="+filepath.Join(dataDir, "gym.db"),
		"GYM_STORAGE_GYM_DATA_DIR="+filepath.Join(dataDir, "gym_data"),
		"GYM_STORAGE_UPLOAD_DIR="+filepath.Join(dataDir, "uploads"),
		"GYM_JOBS_ENABLED=false",
		"GYM_LOG_FORMAT=console",
		"ADMIN_USER=owner@gym.com",
		"ADMIN_PASSWORD=testpass123",
	)
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr

	if err := serverCmd.Start(); err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		return 1
	}

	ready := false
	for range 50 {
		time.Sleep(100 * time.Millisecond)
		resp, err := http.Get(appURL + "/ready")
		if err == nil && resp.StatusCode == http.StatusOK {
			ready = true
			resp.Body.Close()
			break
		}
	}

	if !ready {
		fmt.Println("Server failed to start or is not reachable")
		serverCmd.Process.Kill()
		return 1
	}

	code := m.Run()

	if err := serverCmd.Process.Kill(); err != nil {
		fmt.Printf("Failed to kill server: %v\n", err)
	}

	return code
}
