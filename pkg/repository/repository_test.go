package repository_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
	"github.com/secmon-lab/threatlens/pkg/repository"
)

func newThreat(id string) *model.Threat {
	return &model.Threat{
		ID:         id,
		Country:    "Russia",
		City:       "Moscow",
		ThreatType: "DDoS Attack",
		Severity:   types.SeverityHigh,
		Timestamp:  "Just now",
		Lat:        55.7558,
		Lng:        37.6176,
		Source:     "Demo",
	}
}

func ids(threats []*model.Threat) []string {
	result := make([]string, len(threats))
	for i, t := range threats {
		result[i] = t.ID
	}
	return result
}

func testFeedRepository(t *testing.T, newRepo func(t *testing.T, capacity int) interfaces.FeedRepository) {
	t.Run("PushThreats", func(t *testing.T) {
		repo := newRepo(t, 8)
		defer repo.Close()

		ctx := context.Background()
		threat := newThreat("push-1")
		threat.IPAddress = "203.0.113.7"
		threat.Description = "test description"

		gt.NoError(t, repo.PushThreats(ctx, threat))

		listed, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.A(t, listed).Length(1)
		gt.Equal(t, listed[0].ID, threat.ID)
		gt.Equal(t, listed[0].Country, threat.Country)
		gt.Equal(t, listed[0].Severity, threat.Severity)
		gt.Equal(t, listed[0].Lat, threat.Lat)
		gt.Equal(t, listed[0].Lng, threat.Lng)
		gt.Equal(t, listed[0].IPAddress, threat.IPAddress)
		gt.Equal(t, listed[0].Description, threat.Description)
	})

	t.Run("PushThreats_NewestFirst", func(t *testing.T) {
		repo := newRepo(t, 8)
		defer repo.Close()

		ctx := context.Background()
		gt.NoError(t, repo.PushThreats(ctx, newThreat("a"), newThreat("b")))
		gt.NoError(t, repo.PushThreats(ctx, newThreat("c")))

		listed, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.Equal(t, ids(listed), []string{"c", "a", "b"})
	})

	t.Run("PushThreats_Capacity", func(t *testing.T) {
		repo := newRepo(t, 3)
		defer repo.Close()

		ctx := context.Background()
		for i := range 5 {
			gt.NoError(t, repo.PushThreats(ctx, newThreat(fmt.Sprintf("cap-%d", i))))
		}

		listed, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.Equal(t, ids(listed), []string{"cap-4", "cap-3", "cap-2"})
	})

	t.Run("PushThreats_DuplicateMovesToHead", func(t *testing.T) {
		repo := newRepo(t, 8)
		defer repo.Close()

		ctx := context.Background()
		gt.NoError(t, repo.PushThreats(ctx, newThreat("x"), newThreat("y")))
		gt.NoError(t, repo.PushThreats(ctx, newThreat("y")))

		listed, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.Equal(t, ids(listed), []string{"y", "x"})
	})

	t.Run("PushThreats_Invalid", func(t *testing.T) {
		repo := newRepo(t, 8)
		defer repo.Close()

		ctx := context.Background()
		gt.Error(t, repo.PushThreats(ctx, nil))
		gt.Error(t, repo.PushThreats(ctx, newThreat("")))
	})

	t.Run("ReplaceThreats", func(t *testing.T) {
		repo := newRepo(t, 3)
		defer repo.Close()

		ctx := context.Background()
		gt.NoError(t, repo.PushThreats(ctx, newThreat("old-1"), newThreat("old-2")))

		replacement := []*model.Threat{newThreat("r1"), newThreat("r2"), newThreat("r3"), newThreat("r4")}
		gt.NoError(t, repo.ReplaceThreats(ctx, replacement))

		listed, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.Equal(t, ids(listed), []string{"r1", "r2", "r3"})

		gt.NoError(t, repo.ReplaceThreats(ctx, nil))
		listed, err = repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.A(t, listed).Length(0)
	})

	t.Run("ListThreats_Limit", func(t *testing.T) {
		repo := newRepo(t, 8)
		defer repo.Close()

		ctx := context.Background()
		gt.NoError(t, repo.ReplaceThreats(ctx, []*model.Threat{newThreat("l1"), newThreat("l2"), newThreat("l3")}))

		listed, err := repo.ListThreats(ctx, 2)
		gt.NoError(t, err)
		gt.Equal(t, ids(listed), []string{"l1", "l2"})
	})

	t.Run("ListThreats_ReturnsCopies", func(t *testing.T) {
		repo := newRepo(t, 8)
		defer repo.Close()

		ctx := context.Background()
		gt.NoError(t, repo.PushThreats(ctx, newThreat("copy")))

		listed, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		listed[0].City = "Mutated"

		again, err := repo.ListThreats(ctx, 0)
		gt.NoError(t, err)
		gt.Equal(t, again[0].City, "Moscow")
	})
}

func TestMemoryRepository(t *testing.T) {
	testFeedRepository(t, func(t *testing.T, capacity int) interfaces.FeedRepository {
		return repository.NewMemory(capacity)
	})
}

func TestMemoryRepositoryDefaultCapacity(t *testing.T) {
	repo := repository.NewMemory(0)
	ctx := context.Background()

	for i := range repository.DefaultFeedCapacity + 4 {
		gt.NoError(t, repo.PushThreats(ctx, newThreat(fmt.Sprintf("d-%d", i))))
	}

	listed, err := repo.ListThreats(ctx, 0)
	gt.NoError(t, err)
	gt.A(t, listed).Length(repository.DefaultFeedCapacity)
}

func TestFirestoreRepository(t *testing.T) {
	// Skip test if Firestore test environment variables are not set
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE")

	if projectID == "" || databaseID == "" {
		t.Skip("Skipping Firestore test: TEST_FIRESTORE_PROJECT and TEST_FIRESTORE_DATABASE must be set")
	}

	testFeedRepository(t, func(t *testing.T, capacity int) interfaces.FeedRepository {
		ctx := context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		ctx = ctxlog.With(ctx, logger)

		// Each subtest uses its own collection so runs do not interfere
		collection := fmt.Sprintf("feed_threats_test_%d", time.Now().UnixNano())
		repo, err := repository.NewFirestore(ctx, projectID, databaseID,
			repository.WithCapacity(capacity),
			repository.WithCollection(collection),
		)
		gt.NoError(t, err)
		return repo
	})
}
