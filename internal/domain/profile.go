package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Profile sections that are never rendered as context.
var excludedProfileKeys = map[string]bool{
	"attachments": true,
	"urls":        true,
}

// Profile is a read-only snapshot of the user's profile data.
type Profile struct {
	UserProfile Fields          `json:"user_profile"`
	Skills      SkillCategories `json:"technical_skills"`
	Projects    []Project       `json:"projects"`
	Activities  []Activity      `json:"other_activities"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// Field is a single user_profile entry. Non-string values are preserved
// verbatim but are not rendered as context.
type Field struct {
	Key   string
	Value string
	raw   json.RawMessage
}

// IsText reports whether the field holds a plain string value.
func (f Field) IsText() bool {
	return f.raw == nil
}

// Fields is an ordered JSON object.
type Fields []Field

// Get returns the string value for key.
func (fs Fields) Get(key string) string {
	for _, f := range fs {
		if f.Key == key && f.IsText() {
			return f.Value
		}
	}
	return ""
}

// Renderable returns text fields that should be scored, in document order.
func (fs Fields) Renderable() []Field {
	var out []Field
	for _, f := range fs {
		if excludedProfileKeys[f.Key] || !f.IsText() || strings.TrimSpace(f.Value) == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (fs *Fields) UnmarshalJSON(data []byte) error {
	*fs = nil
	return decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			*fs = append(*fs, Field{Key: key, Value: s})
			return nil
		}
		*fs = append(*fs, Field{Key: key, raw: append(json.RawMessage(nil), raw...)})
		return nil
	})
}

func (fs Fields) MarshalJSON() ([]byte, error) {
	return encodeOrderedObject(len(fs), func(i int) (string, any) {
		if fs[i].raw != nil {
			return fs[i].Key, fs[i].raw
		}
		return fs[i].Key, fs[i].Value
	})
}

// SkillCategory is one named group of skills.
type SkillCategory struct {
	Name   string
	Skills []string
}

// SkillCategories is an ordered JSON object of category -> skills.
type SkillCategories []SkillCategory

// FirstNonEmpty returns the first category that has at least one skill.
func (sc SkillCategories) FirstNonEmpty() (SkillCategory, bool) {
	for _, c := range sc {
		if len(c.Skills) > 0 {
			return c, true
		}
	}
	return SkillCategory{}, false
}

func (sc *SkillCategories) UnmarshalJSON(data []byte) error {
	*sc = nil
	return decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var skills StringList
		if err := json.Unmarshal(raw, &skills); err != nil {
			return fmt.Errorf("skill category %q: %w", key, err)
		}
		*sc = append(*sc, SkillCategory{Name: key, Skills: skills})
		return nil
	})
}

func (sc SkillCategories) MarshalJSON() ([]byte, error) {
	return encodeOrderedObject(len(sc), func(i int) (string, any) {
		skills := sc[i].Skills
		if skills == nil {
			skills = []string{}
		}
		return sc[i].Name, skills
	})
}

// StringList accepts either a JSON array of strings or a comma-separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = nil
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// Project is a single portfolio entry.
type Project struct {
	Domain        string     `json:"domain,omitempty"`
	Name          string     `json:"name,omitempty"`
	Role          string     `json:"role,omitempty"`
	Description   string     `json:"description,omitempty"`
	Technologies  StringList `json:"technologies,omitempty"`
	RelatedSkills StringList `json:"related_skills,omitempty"`
}

// Title returns the project's display name.
func (p Project) Title() string {
	if p.Domain != "" {
		return p.Domain
	}
	return p.Name
}

// Stack returns the technologies used by the project.
func (p Project) Stack() []string {
	if len(p.Technologies) > 0 {
		return p.Technologies
	}
	return p.RelatedSkills
}

// Activity is a non-project activity such as a talk or certification.
type Activity struct {
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Label returns the activity's display name.
func (a Activity) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Title
}

// Attachment is free text extracted from an uploaded document.
type Attachment struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// IsEmpty reports whether the profile has no renderable content at all.
func (p *Profile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.UserProfile.Renderable()) == 0 && len(p.Skills) == 0 &&
		len(p.Projects) == 0 && len(p.Activities) == 0 && len(p.Attachments) == 0
}

// Validate checks structural constraints on a profile before it is saved.
func (p *Profile) Validate() error {
	if p == nil {
		return ErrInvalidProfile
	}
	seen := make(map[string]bool)
	for _, c := range p.Skills {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return NewDomainErrorWithCause(ErrCodeValidation, "invalid profile", fmt.Errorf("skill category name is empty"))
		}
		if seen[strings.ToLower(name)] {
			return NewDomainErrorWithCause(ErrCodeValidation, "invalid profile", fmt.Errorf("duplicate skill category %q", name))
		}
		seen[strings.ToLower(name)] = true
	}
	for i, proj := range p.Projects {
		if proj.Title() == "" && proj.Description == "" {
			return NewDomainErrorWithCause(ErrCodeValidation, "invalid profile", fmt.Errorf("project %d has neither name nor description", i))
		}
	}
	for i, a := range p.Activities {
		if a.Label() == "" && a.Description == "" {
			return NewDomainErrorWithCause(ErrCodeValidation, "invalid profile", fmt.Errorf("activity %d has neither name nor description", i))
		}
	}
	return nil
}

func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func encodeOrderedObject(n int, entry func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, value := entry(i)
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
