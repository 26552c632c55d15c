//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/internal/db"
	"github.com/sweetshop/apiserver/internal/server"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := db.MigrateUp(config.LoadConfig().Database.DSN()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/health"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestAuthFlow(t *testing.T) {
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())

	var registered authResponse
	status := call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Test User",
	}, &registered)
	if status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}
	if registered.Token == "" || registered.User.Role != "user" {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	status = call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Again",
	}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected duplicate register to conflict, got %d", status)
	}

	status = call(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "wrong",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected bad login to fail, got %d", status)
	}

	var me userResponse
	if status := call(t, http.MethodGet, "/api/auth/me", registered.Token, nil, &me); status != http.StatusOK {
		t.Fatalf("me status %d", status)
	}
	if me.Email != email {
		t.Fatalf("unexpected me: %+v", me)
	}
}

func TestSweetLifecycle(t *testing.T) {
	admin := adminToken(t)
	userToken := registerUser(t)
	name := fmt.Sprintf("Caramel %d", time.Now().UnixNano())

	var created sweetResponse
	status := call(t, http.MethodPost, "/api/sweets", admin, map[string]any{
		"name": name, "category": "Chewy", "price": 2.675, "quantity": 5,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status %d", status)
	}
	if created.ID == "" || created.Price != 2.68 || created.Quantity != 5 {
		t.Fatalf("unexpected created sweet: %+v", created)
	}

	if status := call(t, http.MethodPost, "/api/sweets", userToken, map[string]any{
		"name": "Nope", "category": "Chewy", "price": 1, "quantity": 1,
	}, nil); status != http.StatusForbidden {
		t.Fatalf("expected user create to be forbidden, got %d", status)
	}

	var found []sweetResponse
	if status := call(t, http.MethodGet, "/api/sweets/search?name="+strings.ReplaceAll(name, " ", "%20"), userToken, nil, &found); status != http.StatusOK {
		t.Fatalf("search status %d", status)
	}
	if len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("unexpected search result: %+v", found)
	}

	var purchased sweetResponse
	if status := call(t, http.MethodPost, "/api/sweets/"+created.ID+"/purchase", userToken, map[string]int{"quantity": 3}, &purchased); status != http.StatusOK {
		t.Fatalf("purchase status %d", status)
	}
	if purchased.Quantity != 2 {
		t.Fatalf("expected 2 left, got %d", purchased.Quantity)
	}

	if status := call(t, http.MethodPost, "/api/sweets/"+created.ID+"/purchase", userToken, map[string]int{"quantity": 3}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected insufficient stock, got %d", status)
	}

	var restocked sweetResponse
	if status := call(t, http.MethodPost, "/api/sweets/"+created.ID+"/restock", admin, map[string]int{"quantity": 10}, &restocked); status != http.StatusOK {
		t.Fatalf("restock status %d", status)
	}
	if restocked.Quantity != 12 {
		t.Fatalf("expected 12 in stock, got %d", restocked.Quantity)
	}

	var updated sweetResponse
	if status := call(t, http.MethodPut, "/api/sweets/"+created.ID, admin, map[string]any{"price": 3.5}, &updated); status != http.StatusOK {
		t.Fatalf("update status %d", status)
	}
	if updated.Price != 3.5 || updated.Name != name {
		t.Fatalf("unexpected updated sweet: %+v", updated)
	}

	if status := call(t, http.MethodDelete, "/api/sweets/"+created.ID, admin, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete status %d", status)
	}
	if status := call(t, http.MethodGet, "/api/sweets/"+created.ID, userToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected deleted sweet to be missing, got %d", status)
	}
}

func TestConcurrentPurchaseNeverOversells(t *testing.T) {
	admin := adminToken(t)
	userToken := registerUser(t)

	var created sweetResponse
	status := call(t, http.MethodPost, "/api/sweets", admin, map[string]any{
		"name": fmt.Sprintf("Gumdrop %d", time.Now().UnixNano()), "category": "Gummy", "price": 0.5, "quantity": 10,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status %d", status)
	}

	const buyers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := call(t, http.MethodPost, "/api/sweets/"+created.ID+"/purchase", userToken, map[string]int{"quantity": 1}, nil)
			if status == http.StatusOK {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected 10 successful purchases, got %d", succeeded)
	}

	var final sweetResponse
	if status := call(t, http.MethodGet, "/api/sweets/"+created.ID, userToken, nil, &final); status != http.StatusOK {
		t.Fatalf("get status %d", status)
	}
	if final.Quantity != 0 {
		t.Fatalf("expected stock to be exhausted, got %d", final.Quantity)
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type sweetResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// call sends a JSON request and decodes the response into out when the
// status is 2xx. It returns the status code.
func call(t *testing.T, method, path, token string, payload, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Errorf("marshal payload: %v", err)
			return 0
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Errorf("build request: %v", err)
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, path, err)
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Errorf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func registerUser(t *testing.T) string {
	t.Helper()
	token, _ := register(t)
	return token
}

func register(t *testing.T) (string, string) {
	t.Helper()
	email := fmt.Sprintf("e2e_%d@example.com", time.Now().UnixNano())
	var parsed authResponse
	status := call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "E2E",
	}, &parsed)
	if status != http.StatusCreated || parsed.Token == "" {
		t.Fatalf("register status %d", status)
	}
	return parsed.Token, email
}

// adminToken registers a user, promotes it in the database and logs in again
// so the new token carries the admin role.
func adminToken(t *testing.T) string {
	t.Helper()
	_, email := register(t)
	if err := promoteUserToAdmin(email); err != nil {
		t.Fatalf("promote user: %v", err)
	}

	var parsed authResponse
	status := call(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	}, &parsed)
	if status != http.StatusOK || parsed.User.Role != "admin" {
		t.Fatalf("admin login status %d: %+v", status, parsed.User)
	}
	return parsed.Token
}

func promoteUserToAdmin(email string) error {
	conn, err := sql.Open("postgres", config.LoadConfig().Database.DSN())
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE users SET role = 'admin' WHERE email = $1", email)
	return err
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_DRIVER", "postgres")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "sweetshop")
	_ = os.Setenv("DB_PASSWORD", "sweetshop")
	_ = os.Setenv("DB_NAME", "sweetshop")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("AUTH_RATE_LIMIT", "0")
}

func waitForPostgres(ctx context.Context) error {
	conn, err := sql.Open("postgres", config.LoadConfig().Database.DSN())
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	srv, err := server.New(ctx, cfg, log, server.Options{Migrate: false})
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
