package service

import (
	"encoding/json"
	"testing"

	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/stretchr/testify/require"
)

const angularProfileJSON = `{
	"user_profile": {
		"name": "Sam Doe",
		"profile_summary": "Frontend engineer focused on dashboards"
	},
	"technical_skills": {
		"Frontend": ["Angular", "TypeScript"]
	},
	"projects": [
		{"domain": "Angular dashboard", "related_skills": ["Angular", "TypeScript"]}
	],
	"other_activities": [
		{"title": "Meetup talk", "description": "Spoke about state management"}
	]
}`

const fullProfileJSON = `{
	"user_profile": {
		"name": "Sam Doe",
		"current_role": "Senior Engineer",
		"profile_summary": "Full-stack engineer with 8 years of experience building cloud platforms.",
		"urls": ["https://example.com"]
	},
	"technical_skills": {
		"Frontend": ["Angular", "TypeScript", "RxJS"],
		"Backend": [".NET", "C#", "Node.js"],
		"Data": ["SQL Server", "MongoDB"],
		"Cloud": ["Azure", "Docker"]
	},
	"projects": [
		{"domain": "Angular dashboard", "role": "Lead developer", "description": "Designed and built a real-time analytics dashboard", "related_skills": ["Angular", "TypeScript", "RxJS"]},
		{"name": "Billing API", "role": "Backend engineer", "description": "Implemented invoicing services deployed to Azure", "technologies": [".NET", "C#", "SQL Server"]},
		{"name": "Chat bot", "description": "Developed a support chat bot", "technologies": ["Node.js", "MongoDB"]}
	],
	"other_activities": [
		{"title": "Conference talk", "description": "Spoke about RxJS patterns"},
		{"name": "Mentoring", "description": "Mentored junior developers"}
	]
}`

func loadProfile(t *testing.T, data string) *domain.Profile {
	t.Helper()
	var p domain.Profile
	require.NoError(t, json.Unmarshal([]byte(data), &p))
	return &p
}

func findItem(items []domain.ContextItem, source domain.ContextSource, itemType string) *domain.ContextItem {
	for i := range items {
		if items[i].Source == source && items[i].ItemType == itemType {
			return &items[i]
		}
	}
	return nil
}
