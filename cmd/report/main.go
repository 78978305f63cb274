// report prints a learner's dashboard overview, skill comparison, momentum
// and plateau analysis to the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"convocoach/internal/analytics"
	"convocoach/internal/config"
	"convocoach/internal/di"
	"convocoach/internal/logging"
)

func main() {
	var (
		userID  = flag.String("user", "", "user ID to report on (required)")
		days    = flag.Int("days", analytics.DefaultSkillDays, "skill comparison window in days")
		noColor = flag.Bool("no-color", false, "disable colored output")
	)
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: report -user <id> [-days N]")
		os.Exit(2)
	}
	if *noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Logs would interleave with the report on stdout
	ctx := context.Background()
	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logging.NewNoOpLogger()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = container.Close() }()

	if err := newPrinter(os.Stdout).report(ctx, container.Dashboard, *userID, *days); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		_ = container.Close()
		os.Exit(1) //nolint:gocritic // resources closed above
	}
}

type printer struct {
	out   io.Writer
	title *color.Color
	label *color.Color
	good  *color.Color
	warn  *color.Color
	bad   *color.Color
	info  *color.Color
	caser cases.Caser
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:   out,
		title: color.New(color.FgCyan, color.Bold),
		label: color.New(color.Bold),
		good:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed),
		info:  color.New(color.FgBlue),
		caser: cases.Title(language.English),
	}
}

func (p *printer) report(ctx context.Context, d *analytics.Dashboard, userID string, days int) error {
	overview, err := d.UserOverview(ctx, userID)
	if err != nil {
		return fmt.Errorf("overview: %w", err)
	}
	p.overview(overview)

	comparison, err := d.Skills().CompareSkills(ctx, userID, days)
	if err != nil {
		return fmt.Errorf("skill comparison: %w", err)
	}
	p.section("Skill Comparison")
	if c, soft := comparison.Unwrap(); soft != nil {
		p.softError(soft)
	} else {
		p.skillComparison(c)
	}

	momentum, err := d.Trends().AnalyzeMomentum(ctx, userID)
	if err != nil {
		return fmt.Errorf("momentum: %w", err)
	}
	p.section("Momentum")
	if m, soft := momentum.Unwrap(); soft != nil {
		p.softError(soft)
	} else {
		p.momentum(m)
	}

	plateaus, err := d.Trends().IdentifyLearningPlateaus(ctx, userID)
	if err != nil {
		return fmt.Errorf("plateaus: %w", err)
	}
	p.section("Plateaus")
	if pl, soft := plateaus.Unwrap(); soft != nil {
		p.softError(soft)
	} else {
		p.plateaus(pl)
	}
	return nil
}

func (p *printer) section(name string) {
	fmt.Fprintln(p.out)
	p.title.Fprintln(p.out, name)
	p.title.Fprintln(p.out, strings.Repeat("=", len(name)))
}

func (p *printer) field(name string, value interface{}) {
	p.label.Fprintf(p.out, "%-22s", name+":")
	fmt.Fprintf(p.out, " %v\n", value)
}

// humanize turns identifiers such as "needs_improvement" into "Needs Improvement"
func (p *printer) humanize(s string) string {
	return p.caser.String(strings.ReplaceAll(s, "_", " "))
}

func (p *printer) scoreColor(score float64) *color.Color {
	switch {
	case score >= 75:
		return p.good
	case score >= 50:
		return p.warn
	default:
		return p.bad
	}
}

func (p *printer) softError(soft *analytics.SoftError) {
	p.warn.Fprintf(p.out, "%s: %s\n", p.humanize(string(soft.Kind)), soft.Message)
}

func (p *printer) bullets(items []string) {
	for _, item := range items {
		p.info.Fprint(p.out, "  • ")
		fmt.Fprintln(p.out, item)
	}
}

func (p *printer) overview(o *analytics.Overview) {
	p.section("Overview for " + o.UserID)
	p.field("Sessions", o.TotalSessions)
	p.field("Practice Minutes", o.TotalPracticeMinutes)

	if len(o.SkillSummary.TopSkills) == 0 {
		p.warn.Fprintln(p.out, "No assessed skills yet")
	} else {
		p.scores("Top Skills:", o.SkillSummary.TopSkills)
		p.scores("Focus Areas:", o.SkillSummary.NeedsImprovement)
	}

	if len(o.RecentActivity) > 0 {
		p.label.Fprintln(p.out, "Recent Activity:")
		for _, a := range o.RecentActivity {
			fmt.Fprintf(p.out, "  %s  %-10s %3d messages\n", a.Date.Format("2006-01-02"), p.humanize(string(a.SessionType)), a.MessageCount)
		}
	}
	p.field("Next Step", o.Recommendation.Message)
}

func (p *printer) scores(heading string, scores []analytics.SkillScore) {
	p.label.Fprintln(p.out, heading)
	for _, s := range scores {
		fmt.Fprintf(p.out, "  %-20s", s.DisplayName)
		p.scoreColor(s.Score).Fprintf(p.out, " %5.1f\n", s.Score)
	}
}

func (p *printer) skillComparison(c *analytics.SkillComparison) {
	p.field("Period", fmt.Sprintf("%d days", c.PeriodDays))
	p.field("Balance", fmt.Sprintf("%.1f (%s)", c.BalanceAnalysis.Score, p.humanize(c.BalanceAnalysis.Level)))

	skills := make([]string, 0, len(c.SkillGrowth))
	for skill := range c.SkillGrowth {
		skills = append(skills, skill)
	}
	sort.Strings(skills)
	for _, skill := range skills {
		g := c.SkillGrowth[skill]
		p.label.Fprintf(p.out, "  %-20s", p.humanize(skill))
		growth := p.good
		if g.GrowthRate < 0 {
			growth = p.bad
		}
		growth.Fprintf(p.out, " %+6.1f%%", g.GrowthRate)
		fmt.Fprintf(p.out, "  %s\n", p.humanize(g.Direction))
	}
	p.bullets(c.Recommendations)
}

func (p *printer) momentum(m *analytics.MomentumReport) {
	c := p.good
	if m.OverallMomentum < 0 {
		c = p.bad
	}
	p.label.Fprintf(p.out, "%-22s", "Overall:")
	c.Fprintf(p.out, " %+.1f", m.OverallMomentum)
	fmt.Fprintf(p.out, " (%s)\n", p.humanize(m.Interpretation))
	p.field("Sessions", fmt.Sprintf("%d recent vs %d previous", m.ActivityMomentum.RecentSessions, m.ActivityMomentum.PreviousSessions))
	if !m.PerformanceMomentum.InsufficientData {
		p.field("Average Score", fmt.Sprintf("%.1f recent vs %.1f previous",
			m.PerformanceMomentum.RecentAverage, m.PerformanceMomentum.PreviousAverage))
	}
	p.bullets(m.Recommendations)
}

func (p *printer) plateaus(r *analytics.PlateauReport) {
	if !r.PlateausDetected {
		p.good.Fprintln(p.out, "No plateaus detected")
		return
	}
	for _, skill := range r.AffectedSkills {
		d := r.Details[skill]
		p.warn.Fprintf(p.out, "  %-20s", p.humanize(skill))
		fmt.Fprintf(p.out, " flat around %.1f for %d days\n", d.Average, d.DurationDays)
	}
	p.bullets(r.BreakthroughStrategies)
}
