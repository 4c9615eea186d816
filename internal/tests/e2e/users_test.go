//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paneladmin/apiserver/config"
	"github.com/paneladmin/apiserver/internal/db"
	"github.com/paneladmin/apiserver/internal/server"
	"github.com/paneladmin/apiserver/internal/store"
	"github.com/paneladmin/apiserver/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	serverPort = 18080
)

var databaseURL string

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("panel_db"),
		postgres.WithUsername("panel"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}

	databaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read connection string: %v\n", err)
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	if err := db.MigrateUp(databaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = container.Terminate(context.Background())
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = container.Terminate(context.Background())
	os.Exit(code)
}

func startServer(ctx context.Context) (*server.Server, error) {
	os.Setenv("DATABASE_URL", databaseURL)
	os.Setenv("SERVER_PORT", fmt.Sprint(serverPort))
	os.Setenv("STORE_DRIVER", "postgres")
	os.Setenv("BCRYPT_COST", "4")
	os.Setenv("EVENTS_BACKEND", "none")

	srv, err := server.New(ctx, config.LoadConfig(), zap.NewNop())
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		}
	}()
	return srv, nil
}

func waitForHealth(ctx context.Context, url string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func TestUserLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d/api/panel_users", serverPort)
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())

	status, msg := send(t, http.MethodPost, baseURL, map[string]any{
		"email":      email,
		"name":       "Test Admin",
		"password":   "testpass123!",
		"activity":   1,
		"lang":       "en",
		"valid_till": "2030-01-01 00:00:00",
	})
	if status != http.StatusOK {
		t.Fatalf("create status %d: %s", status, msg)
	}
	var id int
	if _, err := fmt.Sscanf(msg, "New User has been added successfully with id %d", &id); err != nil {
		t.Fatalf("unexpected create message %q: %v", msg, err)
	}

	user, ok := findUser(t, baseURL, id)
	if !ok {
		t.Fatalf("created user %d missing from list", id)
	}
	if user.Email != email || user.ValidTill.String() != "2030-01-01 00:00:00" {
		t.Fatalf("unexpected listed user: %+v", user)
	}

	status, msg = send(t, http.MethodPut, fmt.Sprintf("%s/%d", baseURL, id), map[string]any{
		"email":      email,
		"name":       "Renamed Admin",
		"activity":   0,
		"lang":       "de",
		"valid_till": "2031-02-03 04:05:06",
	})
	if status != http.StatusOK || msg != fmt.Sprintf("User with id: %d has been edited successfully.", id) {
		t.Fatalf("edit status %d: %s", status, msg)
	}

	status, msg = send(t, http.MethodPut, fmt.Sprintf("%s/%d", baseURL, id), map[string]any{
		"email":      email,
		"name":       "Broken",
		"activity":   1,
		"lang":       "en",
		"valid_till": "yesterday",
	})
	if status != http.StatusBadRequest || msg != "Request data is invalid." {
		t.Fatalf("invalid edit status %d: %s", status, msg)
	}

	user, ok = findUser(t, baseURL, id)
	if !ok || user.Name != "Renamed Admin" || user.Lang != "de" || user.Activity != 0 {
		t.Fatalf("unexpected user after edits: %+v", user)
	}

	status, msg = send(t, http.MethodDelete, fmt.Sprintf("%s/%d", baseURL, id), nil)
	if status != http.StatusOK || msg != fmt.Sprintf("Deleted a User successfully with id %d", id) {
		t.Fatalf("delete status %d: %s", status, msg)
	}

	status, msg = send(t, http.MethodDelete, fmt.Sprintf("%s/%d", baseURL, id), nil)
	if status != http.StatusNotFound || msg != fmt.Sprintf("No User found for id %d", id) {
		t.Fatalf("second delete status %d: %s", status, msg)
	}

	if _, ok := findUser(t, baseURL, id); ok {
		t.Fatalf("deleted user %d still listed", id)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d/api/panel_users", serverPort)
	email := fmt.Sprintf("dup_%d@example.com", time.Now().UnixNano())
	payload := map[string]any{
		"email":      email,
		"name":       "Dup",
		"password":   "pw",
		"activity":   true,
		"lang":       "en",
		"valid_till": "2030-01-01",
	}

	if status, msg := send(t, http.MethodPost, baseURL, payload); status != http.StatusOK {
		t.Fatalf("first create status %d: %s", status, msg)
	}
	payload["email"] = strings.ToUpper(email)
	if status, msg := send(t, http.MethodPost, baseURL, payload); status != http.StatusBadRequest {
		t.Fatalf("duplicate create status %d: %s", status, msg)
	}
}

func TestRepositoryAgainstPostgres(t *testing.T) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := store.NewUserRepository(conn)
	created, err := repo.Create(ctx, types.User{
		Email:        fmt.Sprintf("repo_%d@example.com", time.Now().UnixNano()),
		Name:         "Repo",
		PasswordHash: "hash",
		Activity:     1,
		Lang:         "en",
		ValidTill:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Roles:        []string{types.DefaultRole},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.RegisterDate.IsZero() {
		t.Fatalf("expected id and register date, got %+v", created)
	}

	fetched, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(fetched.Roles) != 1 || fetched.Roles[0] != types.DefaultRole {
		t.Fatalf("unexpected roles: %v", fetched.Roles)
	}

	_, err = repo.Create(ctx, types.User{Email: strings.ToUpper(created.Email), Name: "Other", PasswordHash: "h", Lang: "en"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := repo.Update(ctx, created); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

type listedUser struct {
	ID        int            `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Activity  int            `json:"activity"`
	Lang      string         `json:"lang"`
	ValidTill types.DateTime `json:"valid_till"`
}

func findUser(t *testing.T, baseURL string, id int) (listedUser, bool) {
	t.Helper()
	resp, err := http.Get(baseURL)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("list status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var users []listedUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	for _, user := range users {
		if user.ID == id {
			return user, true
		}
	}
	return listedUser{}, false
}

func send(t *testing.T, method, url string, payload any) (int, string) {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, parsed.Message
}
