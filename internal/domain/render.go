package domain

import (
	"fmt"
	"strings"
)

// Canonical text forms shared by the scorer and the embedding index so that
// vector hits can be matched back to structured items.

func RenderProfileField(key, value string) string {
	return fmt.Sprintf("%s: %s", key, value)
}

func RenderSkill(category, skill string) string {
	return fmt.Sprintf("Technical Skill (%s): %s", category, skill)
}

func RenderProject(p Project) string {
	var parts []string
	if title := p.Title(); title != "" {
		parts = append(parts, "Project: "+title)
	}
	if p.Role != "" {
		parts = append(parts, "Role: "+p.Role)
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	if stack := p.Stack(); len(stack) > 0 {
		parts = append(parts, "Technologies: "+strings.Join(stack, ", "))
	}
	return strings.Join(parts, " | ")
}

func RenderActivity(a Activity) string {
	name := a.Label()
	if name != "" && a.Description != "" {
		return fmt.Sprintf("Activity: %s - %s", name, a.Description)
	}
	if name != "" {
		return "Activity: " + name
	}
	return "Activity: " + a.Description
}
