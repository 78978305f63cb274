// seed writes demo practice sessions, conversation logs and analysis
// results into the configured database for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"convocoach/internal/analytics"
	"convocoach/internal/config"
	"convocoach/internal/di"
	"convocoach/internal/logging"
	"convocoach/internal/storage"
	"convocoach/pkg/types"
)

func main() {
	var (
		users  = flag.Int("users", 5, "number of demo users")
		days   = flag.Int("days", 90, "days of history per user")
		seed   = flag.Int64("seed", 1, "random seed")
		prefix = flag.String("prefix", "demo-user-", "user ID prefix")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("failed to load configuration", "error", err)
	}
	logger := logging.NewLoggerWithFormat(logging.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)

	ctx := context.Background()
	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize", "error", err)
	}

	s := newSeeder(container.Store, rand.New(rand.NewSource(*seed)), time.Now().UTC(), container.Config.Analytics.ScenarioPoolSize) //nolint:gosec // demo data
	var total counts
	for i := 1; i <= *users; i++ {
		userID := *prefix + strconv.Itoa(i)
		var c counts
		err := logging.LogOperation(ctx, logger.WithComponent("seed"), "seed_user", func() (err error) {
			c, err = s.seedUser(ctx, userID, *days)
			return err
		})
		if err != nil {
			_ = container.Close()
			os.Exit(1)
		}
		total.add(c)
		logger.Info("seeded user", "user_id", userID, "sessions", c.Sessions, "results", c.Results, "logs", c.Logs)
	}

	fmt.Printf("seeded %d users: %d sessions, %d analysis results, %d conversation logs\n",
		*users, total.Sessions, total.Results, total.Logs)
	if err := container.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
}

type counts struct {
	Sessions int
	Results  int
	Logs     int
}

func (c *counts) add(o counts) {
	c.Sessions += o.Sessions
	c.Results += o.Results
	c.Logs += o.Logs
}

// seeder generates a plausible learning history: a per-user baseline per
// skill, a steady improvement rate and daily noise
type seeder struct {
	w         storage.Writer
	rng       *rand.Rand
	now       time.Time
	scenarios int
}

func newSeeder(w storage.Writer, rng *rand.Rand, now time.Time, scenarios int) *seeder {
	if scenarios <= 0 {
		scenarios = analytics.DefaultSettings().ScenarioPoolSize
	}
	return &seeder{w: w, rng: rng, now: now, scenarios: scenarios}
}

var demoLines = []string{
	"Could you walk me through what happened?",
	"I understand why that was frustrating.",
	"Let me make sure I have this right.",
	"What would a good outcome look like for you?",
	"I'd suggest we try a different approach.",
	"Thanks for raising this with me.",
}

func (s *seeder) seedUser(ctx context.Context, userID string, days int) (counts, error) {
	var c counts
	baseline := make(map[string]float64)
	for _, skill := range analytics.SkillNames() {
		baseline[skill] = 35 + s.rng.Float64()*30
	}
	growth := 0.1 + s.rng.Float64()*0.3

	for day := days; day >= 1; day-- {
		if s.rng.Float64() > 0.45 {
			continue
		}
		start := s.now.AddDate(0, 0, -day).Truncate(24 * time.Hour).
			Add(time.Duration(8+s.rng.Intn(12)) * time.Hour).
			Add(time.Duration(s.rng.Intn(60)) * time.Minute)
		session := s.session(userID, start)
		if err := s.w.SavePracticeSession(ctx, session); err != nil {
			return c, fmt.Errorf("failed to save session: %w", err)
		}
		c.Sessions++

		n, err := s.conversation(ctx, session)
		if err != nil {
			return c, err
		}
		c.Logs += n

		if session.SessionType == types.SessionTypeWatch {
			continue
		}
		elapsed := float64(days - day)
		scores := make(map[string]float64, len(baseline))
		for skill, base := range baseline {
			score := base + growth*elapsed + s.rng.NormFloat64()*4
			scores[skill] = math.Round(math.Max(0, math.Min(100, score))*10) / 10
		}
		result, err := types.NewAnalysisResult(userID, session.ID, scores)
		if err != nil {
			return c, fmt.Errorf("invalid analysis result: %w", err)
		}
		result.CreatedAt = *session.EndedAt
		if err := s.w.SaveAnalysisResult(ctx, result); err != nil {
			return c, fmt.Errorf("failed to save analysis result: %w", err)
		}
		c.Results++
	}
	return c, nil
}

func (s *seeder) session(userID string, start time.Time) *types.PracticeSession {
	end := start.Add(time.Duration(10+s.rng.Intn(26)) * time.Minute)
	session := &types.PracticeSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		StartedAt: start,
		EndedAt:   &end,
	}
	switch r := s.rng.Float64(); {
	case r < 0.7:
		scenario := "scenario" + strconv.Itoa(1+s.rng.Intn(s.scenarios))
		session.SessionType = types.SessionTypeScenario
		session.ScenarioID = &scenario
	case r < 0.9:
		session.SessionType = types.SessionTypeFreeTalk
	default:
		session.SessionType = types.SessionTypeWatch
	}
	return session
}

func (s *seeder) conversation(ctx context.Context, session *types.PracticeSession) (int, error) {
	n := 4 + s.rng.Intn(7)
	step := session.Duration() / time.Duration(n+1)
	for i := 0; i < n; i++ {
		speaker := types.SpeakerUser
		if i%2 == 1 {
			speaker = types.SpeakerAI
		}
		log := &types.ConversationLog{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			Speaker:   speaker,
			Message:   demoLines[s.rng.Intn(len(demoLines))],
			Timestamp: session.StartedAt.Add(time.Duration(i+1) * step),
		}
		if err := s.w.SaveConversationLog(ctx, log); err != nil {
			return i, fmt.Errorf("failed to save conversation log: %w", err)
		}
	}
	return n, nil
}
