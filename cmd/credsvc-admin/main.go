// Command credsvc-admin is the operator tool for the credential service.
//
// It speaks two dialects: HTTP mode posts to the running service (resolving
// the endpoint like the dashboard does, CODEKIDS_LOCAL_ADMIN_ENDPOINT
// included), and direct mode talks to Redis with a wider email probe budget
// for batch provisioning.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	credsvc "github.com/codekids/credsvc"
	"github.com/codekids/credsvc/identity"
	"github.com/codekids/credsvc/internal/adminctl"
)

// Exit codes by failure class.
const (
	exitValidation = 2
	exitAuthz      = 3
	exitNotFound   = 4
	exitPolicy     = 5
	exitBackend    = 6
)

const directProbeAttempts = 50

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitValidation)
	}

	var err error
	switch os.Args[1] {
	case "create-user":
		err = runCreateUser(os.Args[2:])
	case "request-reset":
		err = runRequestReset(os.Args[2:])
	case "resolve":
		err = runResolve(os.Args[2:])
	case "pending":
		err = runPending(os.Args[2:])
	default:
		usage()
		os.Exit(exitValidation)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: credsvc-admin <command> [flags]

commands:
  create-user    provision an account (direct Redis mode, or --http)
  request-reset  file an admin-mediated reset request over HTTP
  resolve        resolve a pending reset request (direct Redis mode)
  pending        list pending reset requests (direct Redis mode)`)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, credsvc.ErrMissingField),
		errors.Is(err, credsvc.ErrEmailRequired),
		errors.Is(err, credsvc.ErrInvalidParams):
		return exitValidation
	case errors.Is(err, credsvc.ErrUnauthorized):
		return exitAuthz
	case errors.Is(err, credsvc.ErrRequestNotFound),
		errors.Is(err, credsvc.ErrIdentityNotFound),
		errors.Is(err, credsvc.ErrProfileNotFound):
		return exitNotFound
	case errors.Is(err, credsvc.ErrPasswordPolicy),
		errors.Is(err, credsvc.ErrEmailCollision):
		return exitPolicy
	default:
		return exitBackend
	}
}

// directEngine builds an engine against Redis with the batch probe budget.
func directEngine(redisAddr string) (*credsvc.Engine, redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{redisAddr},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("%w: %v", credsvc.ErrStoreUnavailable, err)
	}

	cfg := credsvc.DefaultConfig()
	cfg.Provision.EmailProbeAttempts = directProbeAttempts

	engine, err := credsvc.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityProvider(identity.NewRedisProvider(client, cfg.Storage.RedisPrefix, nil)).
		WithAuditSink(credsvc.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return engine, client, nil
}

// credentials is the --key file shape: a bearer token for HTTP mode.
type credentials struct {
	Token string `json:"token"`
}

func loadToken(keyPath string) (string, error) {
	if keyPath == "" {
		// Ambient credential.
		return os.Getenv("CREDSVC_ADMIN_TOKEN"), nil
	}
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", credsvc.ErrInvalidParams, err)
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("%w: %v", credsvc.ErrInvalidParams, err)
	}
	return creds.Token, nil
}

func endpointFor(path string) string {
	return adminctl.ResolveEndpoint(
		os.Getenv(adminctl.EndpointOverrideVar),
		os.Getenv("CREDSVC_ENV"),
		path,
	)
}

func postJSON(endpoint, token string, body any) (map[string]any, int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", credsvc.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var payload map[string]any
	if len(data) > 0 {
		_ = json.Unmarshal(data, &payload)
	}
	return payload, resp.StatusCode, nil
}

func httpError(status int, payload map[string]any) error {
	msg, _ := payload["error"].(string)
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", credsvc.ErrInvalidParams, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", credsvc.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", credsvc.ErrRequestNotFound, msg)
	default:
		return fmt.Errorf("%w: status %d %s", credsvc.ErrStoreUnavailable, status, msg)
	}
}

func runCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	var (
		nombre   = fs.String("nombre", "", "first name")
		paterno  = fs.String("apellido-paterno", "", "paternal surname")
		materno  = fs.String("apellido-materno", "", "maternal surname")
		role     = fs.String("role", "", "role: admin, profesor, estudiante (synonyms accepted)")
		schoolID = fs.String("school", "", "school id (optional)")
		useHTTP  = fs.Bool("http", false, "post to the running service instead of Redis")
		keyPath  = fs.String("key", "", "credentials file for --http (default ambient)")
		redisOpt = fs.String("redis", "127.0.0.1:6379", "redis address for direct mode")
	)
	_ = fs.Parse(args)

	if *useHTTP {
		token, err := loadToken(*keyPath)
		if err != nil {
			return err
		}
		payload, status, err := postJSON(endpointFor("/adminCreateUser"), token, map[string]string{
			"nombre":          *nombre,
			"apellidoPaterno": *paterno,
			"apellidoMaterno": *materno,
			"role":            *role,
			"schoolId":        *schoolID,
		})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return httpError(status, payload)
		}
		fmt.Printf("uid: %v\nemail: %v\ntempPassword: %v\n", payload["uid"], payload["email"], payload["tempPassword"])
		return nil
	}

	engine, client, err := directEngine(*redisOpt)
	if err != nil {
		return err
	}
	defer client.Close()
	defer engine.Close()

	result, err := engine.ProvisionAccount(context.Background(), nil, credsvc.ProvisionInput{
		Nombre:          *nombre,
		ApellidoPaterno: *paterno,
		ApellidoMaterno: *materno,
		Role:            *role,
		SchoolID:        *schoolID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("uid: %s\nemail: %s\ntempPassword: %s\n", result.UID, result.Email, result.TempPassword)
	return nil
}

func runRequestReset(args []string) error {
	fs := flag.NewFlagSet("request-reset", flag.ExitOnError)
	email := fs.String("email", "", "target email")
	_ = fs.Parse(args)

	if *email == "" {
		return credsvc.ErrEmailRequired
	}

	payload, status, err := postJSON(endpointFor("/requestAdminPasswordReset"), "", map[string]string{"email": *email})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return httpError(status, payload)
	}
	fmt.Printf("%v\n", payload["message"])
	return nil
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	var (
		id       = fs.String("id", "", "request id")
		password = fs.String("password", "", "manual password (generated when empty)")
		workflow = fs.String("workflow", "admin", "workflow: admin or self")
		actor    = fs.String("actor", "local-admin", "uid recorded as resolver")
		redisOpt = fs.String("redis", "127.0.0.1:6379", "redis address")
	)
	_ = fs.Parse(args)

	if *id == "" {
		return credsvc.ErrInvalidParams
	}

	engine, client, err := directEngine(*redisOpt)
	if err != nil {
		return err
	}
	defer client.Close()
	defer engine.Close()

	admin := &credsvc.AdminIdentity{UID: *actor}

	var result *credsvc.ResolveResult
	switch *workflow {
	case "admin":
		result, err = engine.ResolveAdminPasswordReset(context.Background(), admin, *id, *password)
	case "self":
		result, err = engine.ResolvePasswordResetRequest(context.Background(), admin, *id, *password)
	default:
		return fmt.Errorf("%w: unknown workflow %q", credsvc.ErrInvalidParams, *workflow)
	}
	if err != nil {
		return err
	}

	if result.AlreadyResolved {
		fmt.Println("already resolved, nothing changed")
		return nil
	}
	fmt.Printf("resolved for uid %s\n", result.UID)
	return nil
}

func runPending(args []string) error {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	var (
		workflow = fs.String("workflow", "admin", "workflow: admin or self")
		limit    = fs.Int("limit", 0, "max records (0 = all)")
		redisOpt = fs.String("redis", "127.0.0.1:6379", "redis address")
	)
	_ = fs.Parse(args)

	engine, client, err := directEngine(*redisOpt)
	if err != nil {
		return err
	}
	defer client.Close()
	defer engine.Close()

	wf := credsvc.WorkflowAdmin
	if *workflow == "self" {
		wf = credsvc.WorkflowSelf
	}

	records, err := engine.PendingRequests(context.Background(), wf, *limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("no pending requests")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  %s  requested %s\n", rec.ID, rec.Email, rec.UserName, rec.RequestedAt.Format(time.RFC3339))
	}
	return nil
}
