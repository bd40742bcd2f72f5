package vectorindex

import (
	"strings"

	"github.com/cloo-solutions/companion/internal/domain"
)

// DocumentsFromProfile renders every indexable fragment of p. The text of
// each document matches what the context scorer renders for the same item,
// so search hits merge with structured items.
func DocumentsFromProfile(p *domain.Profile) []domain.Document {
	if p == nil {
		return nil
	}
	var docs []domain.Document

	for _, f := range p.UserProfile.Renderable() {
		docs = append(docs, domain.Document{
			Text: domain.RenderProfileField(f.Key, f.Value),
			Metadata: map[string]string{
				domain.MetaSource: string(domain.SourceProfile),
				domain.MetaType:   domain.ItemTypeProfileInfo,
				domain.MetaKey:    f.Key,
			},
		})
	}

	for _, cat := range p.Skills {
		for _, skill := range cat.Skills {
			docs = append(docs, domain.Document{
				Text: domain.RenderSkill(cat.Name, skill),
				Metadata: map[string]string{
					domain.MetaSource:   string(domain.SourceSkills),
					domain.MetaType:     domain.ItemTypeSkill,
					domain.MetaCategory: cat.Name,
					domain.MetaSkill:    skill,
				},
			})
		}
	}

	for _, proj := range p.Projects {
		text := domain.RenderProject(proj)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Text: text,
			Metadata: map[string]string{
				domain.MetaSource: string(domain.SourceProjects),
				domain.MetaType:   domain.ItemTypeProject,
				domain.MetaName:   proj.Title(),
			},
		})
	}

	for _, a := range p.Activities {
		docs = append(docs, domain.Document{
			Text: domain.RenderActivity(a),
			Metadata: map[string]string{
				domain.MetaSource: string(domain.SourceActivities),
				domain.MetaType:   domain.ItemTypeActivity,
				domain.MetaName:   a.Label(),
			},
		})
	}

	for _, att := range p.Attachments {
		text := strings.TrimSpace(att.Text)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Text: text,
			Metadata: map[string]string{
				domain.MetaSource: string(domain.SourceProfile),
				domain.MetaType:   domain.ItemTypeAttachment,
				domain.MetaName:   att.Name,
			},
		})
	}
	return docs
}
