package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ashureev/glossgame/internal/domain"
)

//go:embed content/glossary.json content/schema.json
var contentFS embed.FS

const schemaURL = "schema://glossary-content.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Content is a decoded glossary content file.
type Content struct {
	Topics    []domain.Topic
	Questions []domain.Question
}

type contentFile struct {
	Topics []contentTopic `json:"topics"`
}

type contentTopic struct {
	ID          string            `json:"id"`
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	SkillTag    string            `json:"skill_tag"`
	Questions   []contentQuestion `json:"questions"`
}

type contentQuestion struct {
	ID                  string `json:"id"`
	Term                string `json:"term"`
	ShownDefinition     string `json:"shown_definition"`
	IsDefinitionCorrect bool   `json:"is_definition_correct"`
	Explanation         string `json:"explanation"`
	IconKey             string `json:"icon_key"`
}

// LoadContent reads a glossary file from path, or the embedded glossary when path is empty.
func LoadContent(path string) (*Content, error) {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = contentFS.ReadFile("content/glossary.json")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return ParseContent(raw)
}

// ParseContent validates raw glossary JSON against the content schema and
// flattens it into topics and questions. Topic sort order and question
// order_index follow their position in the file.
func ParseContent(raw []byte) (*Content, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidInput, err)
	}

	schema, err := contentSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", domain.ErrInvalidInput, err)
	}

	var file contentFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	content := &Content{}
	topicIDs := make(map[string]bool)
	slugs := make(map[string]bool)
	questionIDs := make(map[string]bool)
	for i, t := range file.Topics {
		if topicIDs[t.ID] {
			return nil, fmt.Errorf("%w: duplicate topic id %q", domain.ErrInvalidInput, t.ID)
		}
		if slugs[t.Slug] {
			return nil, fmt.Errorf("%w: duplicate topic slug %q", domain.ErrInvalidInput, t.Slug)
		}
		topicIDs[t.ID] = true
		slugs[t.Slug] = true

		content.Topics = append(content.Topics, domain.Topic{
			ID:          t.ID,
			Slug:        t.Slug,
			Title:       t.Title,
			Description: t.Description,
			SkillTag:    t.SkillTag,
			SortOrder:   i,
		})
		for j, q := range t.Questions {
			if questionIDs[q.ID] {
				return nil, fmt.Errorf("%w: duplicate question id %q", domain.ErrInvalidInput, q.ID)
			}
			questionIDs[q.ID] = true
			content.Questions = append(content.Questions, domain.Question{
				ID:                  q.ID,
				TopicID:             t.ID,
				Term:                q.Term,
				ShownDefinition:     q.ShownDefinition,
				IsDefinitionCorrect: q.IsDefinitionCorrect,
				Explanation:         q.Explanation,
				IconKey:             q.IconKey,
				OrderIndex:          j,
			})
		}
	}
	return content, nil
}

func contentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := contentFS.ReadFile("content/schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("read schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(raw, &def); err != nil {
			schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}
