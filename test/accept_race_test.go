package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"missionflow/auth"
	"missionflow/db"
	"missionflow/mission"
	"missionflow/test/infra"
)

// TestConcurrentAcceptExactlyOnce runs the accept race against a real
// Postgres: N providers hammer one PENDING mission and exactly one wins.
func TestConcurrentAcceptExactlyOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := startDatabase(t, ctx)

	authRepo := auth.NewRepository(pool)
	missionRepo := mission.NewRepository(pool)

	client := createUser(t, ctx, authRepo, "client@example.com", auth.RoleClient)

	const competitors = 16
	providers := make([]auth.User, competitors)
	for i := range providers {
		providers[i] = createUser(t, ctx, authRepo,
			fmt.Sprintf("provider%d@example.com", i), auth.RoleProvider)
	}

	m, err := missionRepo.Create(ctx, mission.CreateParams{
		ClientID:       client.ID,
		Title:          "Assemble wardrobe",
		Description:    "Two-door wardrobe, parts included",
		Category:       "assembly",
		Address:        "12 rue de la Paix",
		EstimatedPrice: 120,
		Commission:     18,
	})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}

	var (
		winners []string
		g       errgroup.Group
		results = make(chan string, competitors)
	)
	for i := 0; i < competitors; i++ {
		providerID := providers[i].ID
		g.Go(func() error {
			_, err := missionRepo.AcceptPending(ctx, m.ID, providerID)
			switch {
			case err == nil:
				results <- providerID
				return nil
			case errors.Is(err, mission.ErrNotAvailable):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("accept race: %v", err)
	}
	close(results)
	for id := range results {
		winners = append(winners, id)
	}

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}

	got, err := missionRepo.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("reload mission: %v", err)
	}
	if got.Status != mission.StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", got.Status)
	}
	if got.ProviderID == nil || *got.ProviderID != winners[0] {
		t.Fatalf("expected provider %s assigned, got %v", winners[0], got.ProviderID)
	}

	// Completion counts the job exactly once, retries included.
	winner := winners[0]
	if _, err := missionRepo.MarkInProgress(ctx, m.ID); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if _, err := missionRepo.CompleteAndCountJob(ctx, m.ID, winner); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := missionRepo.CompleteAndCountJob(ctx, m.ID, winner); !errors.Is(err, mission.ErrInvalidTransition) {
		t.Fatalf("expected retry rejected, got %v", err)
	}

	var totalJobs int
	if err := pool.QueryRow(ctx, `SELECT total_jobs FROM users WHERE id = $1`, winner).Scan(&totalJobs); err != nil {
		t.Fatalf("read total_jobs: %v", err)
	}
	if totalJobs != 1 {
		t.Fatalf("expected total_jobs 1, got %d", totalJobs)
	}
}

// TestCancelFromPendingAndAccepted runs the cancel paths against the real
// schema: a mission cancelled before anyone accepts keeps a null provider,
// one cancelled after acceptance keeps the provider reference, and a
// terminal mission rejects a second cancel.
func TestCancelFromPendingAndAccepted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := startDatabase(t, ctx)

	authRepo := auth.NewRepository(pool)
	missionRepo := mission.NewRepository(pool)

	// Distinct addresses: a shared TEST_PG_DSN database serves every test in
	// the package.
	client := createUser(t, ctx, authRepo, "cancel-client@example.com", auth.RoleClient)
	provider := createUser(t, ctx, authRepo, "cancel-provider@example.com", auth.RoleProvider)

	unaccepted := createMission(t, ctx, missionRepo, client.ID, "Water the plants")
	cancelled, err := missionRepo.CancelActive(ctx, unaccepted.ID)
	if err != nil {
		t.Fatalf("cancel pending mission: %v", err)
	}
	if cancelled.Status != mission.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.ProviderID != nil {
		t.Fatalf("expected nil provider on pending cancel, got %v", *cancelled.ProviderID)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("expected cancelled_at stamped")
	}

	accepted := createMission(t, ctx, missionRepo, client.ID, "Mount the shelves")
	if _, err := missionRepo.AcceptPending(ctx, accepted.ID, provider.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	cancelled, err = missionRepo.CancelActive(ctx, accepted.ID)
	if err != nil {
		t.Fatalf("cancel accepted mission: %v", err)
	}
	if cancelled.ProviderID == nil || *cancelled.ProviderID != provider.ID {
		t.Fatalf("expected provider kept on accepted cancel, got %v", cancelled.ProviderID)
	}

	if _, err := missionRepo.CancelActive(ctx, accepted.ID); !errors.Is(err, mission.ErrInvalidTransition) {
		t.Fatalf("expected second cancel rejected, got %v", err)
	}
}

func startDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_PG_DSN") == "" && !dockerAvailable(ctx) {
		t.Skip("no TEST_PG_DSN and no docker; skipping integration test")
	}

	dsn, cleanup, err := infra.StartPostgres(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = cleanup(context.Background()) })

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func createUser(t *testing.T, ctx context.Context, repo *auth.PGRepository, email string, role auth.Role) auth.User {
	t.Helper()

	u, err := repo.CreateUser(ctx, auth.CreateUserParams{
		Email:        email,
		PasswordHash: "$2a$10$not.a.real.hash.but.unused.in.this.test",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func createMission(t *testing.T, ctx context.Context, repo *mission.PGRepository, clientID, title string) mission.Mission {
	t.Helper()

	m, err := repo.Create(ctx, mission.CreateParams{
		ClientID:       clientID,
		Title:          title,
		Description:    "integration fixture",
		Category:       "home",
		Address:        "12 rue de la Paix",
		EstimatedPrice: 60,
		Commission:     9,
	})
	if err != nil {
		t.Fatalf("create mission %q: %v", title, err)
	}
	return m
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
