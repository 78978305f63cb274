// Package analytics turns a user's analysis history into skill-progress,
// trend, prediction, plateau, momentum and dashboard reports.
//
// The analyzers are stateless apart from their injected ports: a
// storage.Repository for raw records and, for the dashboard, a cache.Cache.
// Lack of history is reported through Result values, never as an error;
// errors are reserved for storage failures.
package analytics

// Skill describes one competency scored by the conversation analysis
type Skill struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Indicators  []string `json:"indicators"`
}

// Canonical skill names
const (
	SkillEmpathy         = "empathy"
	SkillClarity         = "clarity"
	SkillActiveListening = "active_listening"
	SkillAdaptability    = "adaptability"
	SkillPositivity      = "positivity"
	SkillProfessionalism = "professionalism"
)

var catalog = []Skill{
	{
		Name:        SkillEmpathy,
		DisplayName: "Empathy",
		Description: "Understanding and acknowledging the other person's feelings and perspective",
		Indicators:  []string{"acknowledges emotions", "validates concerns", "shows genuine interest"},
	},
	{
		Name:        SkillClarity,
		DisplayName: "Clarity",
		Description: "Expressing ideas in a clear, structured and concise way",
		Indicators:  []string{"uses simple language", "structures the message", "avoids ambiguity"},
	},
	{
		Name:        SkillActiveListening,
		DisplayName: "Active Listening",
		Description: "Paying full attention and showing that the message was understood",
		Indicators:  []string{"paraphrases key points", "asks follow-up questions", "responds to what was said"},
	},
	{
		Name:        SkillAdaptability,
		DisplayName: "Adaptability",
		Description: "Adjusting tone and approach to the person and the situation",
		Indicators:  []string{"adjusts tone", "handles unexpected turns", "offers alternatives"},
	},
	{
		Name:        SkillPositivity,
		DisplayName: "Positivity",
		Description: "Keeping a constructive, encouraging and solution-focused attitude",
		Indicators:  []string{"uses constructive framing", "focuses on solutions", "encourages the other person"},
	},
	{
		Name:        SkillProfessionalism,
		DisplayName: "Professionalism",
		Description: "Communicating respectfully and appropriately for the workplace",
		Indicators:  []string{"keeps a respectful tone", "stays on topic", "uses appropriate language"},
	},
}

var catalogIndex = func() map[string]int {
	idx := make(map[string]int, len(catalog))
	for i, s := range catalog {
		idx[s.Name] = i
	}
	return idx
}()

// Skills returns the catalog in its fixed order
func Skills() []Skill {
	out := make([]Skill, len(catalog))
	for i, s := range catalog {
		s.Indicators = append([]string(nil), s.Indicators...)
		out[i] = s
	}
	return out
}

// SkillNames returns the catalog names in order
func SkillNames() []string {
	names := make([]string, len(catalog))
	for i, s := range catalog {
		names[i] = s.Name
	}
	return names
}

// LookupSkill finds a catalog skill by name
func LookupSkill(name string) (Skill, bool) {
	i, ok := catalogIndex[name]
	if !ok {
		return Skill{}, false
	}
	return catalog[i], true
}

// displayName falls back to the raw name for skills outside the catalog
func displayName(name string) string {
	if s, ok := LookupSkill(name); ok {
		return s.DisplayName
	}
	return name
}

// skillLess orders catalog skills first, in catalog order, then the rest by name
func skillLess(a, b string) bool {
	ia, okA := catalogIndex[a]
	ib, okB := catalogIndex[b]
	switch {
	case okA && okB:
		return ia < ib
	case okA != okB:
		return okA
	default:
		return a < b
	}
}
