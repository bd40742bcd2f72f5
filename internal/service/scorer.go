package service

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/rules"
)

const (
	wordWeight     = 0.4
	techWeight     = 0.5
	baseRelevance  = 0.1
	techTermWeight = 0.3
	indicatorBoost = 0.2
)

// ContextScorer ranks profile fragments against a question.
type ContextScorer struct {
	rules       *rules.Rules
	quality     []qualityRule
	multipliers []multiplierRule
	project     []projectRule
}

// NewContextScorer creates a scorer over the given rule tables.
func NewContextScorer(r *rules.Rules) *ContextScorer {
	s := &ContextScorer{rules: r}
	s.quality = s.qualityRules()
	s.multipliers = s.multiplierRules()
	s.project = s.projectRules()
	return s
}

// queryTerms is the pre-processed form of a question.
type queryTerms struct {
	lowered       string
	words         map[string]bool
	tech          []string
	techSet       map[string]bool
	projectIntent bool
}

// candidate is a context item before scoring.
type candidate struct {
	item       domain.ContextItem
	profileKey string
	skill      string
	stack      []string
	role       string
	similarity float64
}

func (s *ContextScorer) analyze(query string) queryTerms {
	q := queryTerms{
		lowered: strings.ToLower(query),
		words:   rules.Words(query),
	}
	q.tech = s.TechnicalTerms(query)
	q.techSet = make(map[string]bool, len(q.tech))
	for _, t := range q.tech {
		q.techSet[t] = true
	}
	for _, w := range s.rules.ProjectIntentWords {
		if q.words[w] {
			q.projectIntent = true
			break
		}
	}
	return q
}

// TechnicalTerms extracts known technology names and technology-shaped
// words from query. The result is sorted and free of duplicates.
func (s *ContextScorer) TechnicalTerms(query string) []string {
	lowered := strings.ToLower(query)
	seen := make(map[string]bool)
	for _, tech := range s.rules.KnownTechnologies() {
		if rules.ContainsTerm(lowered, tech) {
			seen[tech] = true
		}
	}
	for _, re := range s.rules.TechPatternRegexps() {
		for _, m := range re.FindAllString(lowered, -1) {
			seen[m] = true
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Score renders and scores every fragment of the profile plus any search
// hits. Items are ordered by relevance, ties keeping enumeration order.
func (s *ContextScorer) Score(profile *domain.Profile, query string, hits []domain.SearchHit) []domain.ContextItem {
	q := s.analyze(query)
	candidates := s.enumerate(profile)

	items := make([]domain.ContextItem, 0, len(candidates)+len(hits))
	index := make(map[string]int, len(candidates))
	for i := range candidates {
		item := s.scoreCandidate(&candidates[i], &q)
		if _, dup := index[item.Content]; !dup {
			index[item.Content] = len(items)
		}
		items = append(items, item)
	}

	for _, hit := range hits {
		if hit.Text == "" {
			continue
		}
		if i, ok := index[hit.Text]; ok {
			items[i].RelevanceScore = domain.Clamp(max(items[i].RelevanceScore, hit.Score))
			continue
		}
		c := hitCandidate(hit)
		item := s.scoreCandidate(&c, &q)
		index[item.Content] = len(items)
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
	return items
}

func (s *ContextScorer) enumerate(p *domain.Profile) []candidate {
	if p == nil {
		return nil
	}
	var out []candidate

	for _, f := range p.UserProfile.Renderable() {
		out = append(out, candidate{
			item: domain.ContextItem{
				Content:  domain.RenderProfileField(f.Key, f.Value),
				Source:   domain.SourceProfile,
				ItemType: domain.ItemTypeProfileInfo,
				Metadata: map[string]string{domain.MetaKey: f.Key},
			},
			profileKey: f.Key,
		})
	}

	for _, cat := range p.Skills {
		for _, skill := range cat.Skills {
			if strings.TrimSpace(skill) == "" {
				continue
			}
			out = append(out, candidate{
				item: domain.ContextItem{
					Content:  domain.RenderSkill(cat.Name, skill),
					Source:   domain.SourceSkills,
					ItemType: domain.ItemTypeSkill,
					Metadata: map[string]string{
						domain.MetaSkill:       skill,
						domain.MetaCategory:    cat.Name,
						"related_technologies": strings.Join(s.rules.Related(skill), ", "),
					},
				},
				skill: strings.ToLower(skill),
			})
		}
	}

	for _, proj := range p.Projects {
		stack := proj.Stack()
		out = append(out, candidate{
			item: domain.ContextItem{
				Content:  domain.RenderProject(proj),
				Source:   domain.SourceProjects,
				ItemType: domain.ItemTypeProject,
				Metadata: map[string]string{
					domain.MetaName: proj.Title(),
					"technologies":  strings.Join(stack, ", "),
					"role":          proj.Role,
				},
			},
			stack: lowerAll(stack),
			role:  proj.Role,
		})
	}

	for _, a := range p.Activities {
		out = append(out, candidate{
			item: domain.ContextItem{
				Content:  domain.RenderActivity(a),
				Source:   domain.SourceActivities,
				ItemType: domain.ItemTypeActivity,
				Metadata: map[string]string{domain.MetaName: a.Label()},
			},
		})
	}

	return out
}

func hitCandidate(hit domain.SearchHit) candidate {
	meta := make(map[string]string, len(hit.Metadata)+1)
	for k, v := range hit.Metadata {
		meta[k] = v
	}
	meta["similarity"] = strconv.FormatFloat(hit.Score, 'f', 4, 64)
	return candidate{
		item: domain.ContextItem{
			Content:  hit.Text,
			Source:   hit.Source(),
			ItemType: domain.ItemTypeSearchHit,
			Metadata: meta,
		},
		similarity: hit.Score,
	}
}

func (s *ContextScorer) scoreCandidate(c *candidate, q *queryTerms) domain.ContextItem {
	item := c.item
	lowered := strings.ToLower(item.Content)

	relevance := s.baseRelevance(item.Content, lowered, q)
	for _, rule := range s.multipliers {
		relevance *= rule(c, q)
	}
	item.RelevanceScore = domain.Clamp(max(relevance, c.similarity))
	item.TechnicalScore = s.technicalScore(lowered, q)
	item.ProjectScore = s.projectScore(c, q)
	return item
}

// baseRelevance combines lexical overlap, technical overlap and quality boosts.
func (s *ContextScorer) baseRelevance(content, lowered string, q *queryTerms) float64 {
	var wordScore float64
	if len(q.words) > 0 {
		contentWords := rules.Words(lowered)
		matches := 0
		for w := range q.words {
			if contentWords[w] {
				matches++
			}
		}
		wordScore = float64(matches) / float64(len(q.words))
	}

	var techScore float64
	if len(q.tech) > 0 {
		techScore = float64(countTerms(lowered, q.tech)) / float64(len(q.tech))
	}

	var boost float64
	for _, rule := range s.quality {
		if rule.applies(content, lowered) {
			boost += rule.boost
		}
	}

	return domain.Clamp(wordWeight*wordScore + techWeight*techScore + boost + baseRelevance)
}

func (s *ContextScorer) technicalScore(lowered string, q *queryTerms) float64 {
	terms := countTerms(lowered, q.tech)
	indicators := rules.CountContained(lowered, s.rules.Indicators.Technical)
	return domain.Clamp(techTermWeight*float64(terms) + indicatorBoost*float64(indicators))
}

func (s *ContextScorer) projectScore(c *candidate, q *queryTerms) float64 {
	var score float64
	for _, rule := range s.project {
		score += rule(c, q)
	}
	return domain.Clamp(score)
}

func countTerms(lowered string, terms []string) int {
	n := 0
	for _, t := range terms {
		if rules.ContainsTerm(lowered, t) {
			n++
		}
	}
	return n
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}
