package persona

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	recordExt     = ".yaml"
	recordDirMode = 0o755
	recordMode    = 0o644
)

// FileStore keeps one YAML file per persona under root. Writes are plain
// overwrites; concurrent writers to the same identifier race and the last
// one wins.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at dir. The directory is created
// lazily on the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the directory holding the persona files.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Save(ctx context.Context, id string, p Persona) error {
	return s.write(ctx, id, p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *FileStore) Create(ctx context.Context, id string, p Persona) error {
	return s.write(ctx, id, p, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

func (s *FileStore) write(ctx context.Context, id string, p Persona, flag int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := encodeRecord(p)
	if err != nil {
		return fmt.Errorf("encode persona %s: %w", id, err)
	}

	if err := os.MkdirAll(s.root, recordDirMode); err != nil {
		return fmt.Errorf("create persona dir: %w", err)
	}

	f, err := os.OpenFile(s.path(id), flag, recordMode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, id)
		}
		return fmt.Errorf("open persona %s: %w", id, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write persona %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close persona %s: %w", id, err)
	}

	log.Printf("[store] saved persona id=%s", id)
	return nil
}

func (s *FileStore) Load(ctx context.Context, id string) (Persona, error) {
	if err := ctx.Err(); err != nil {
		return Persona{}, err
	}
	if err := ValidateID(id); err != nil {
		return Persona{}, err
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Persona{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Persona{}, fmt.Errorf("read persona %s: %w", id, err)
	}

	p, err := decodeRecord(data)
	if err != nil {
		return Persona{}, fmt.Errorf("persona %s: %w", id, err)
	}
	return p, nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list personas: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		id := strings.TrimSuffix(name, recordExt)
		if ValidateID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.root, id+recordExt)
}

func encodeRecord(p Persona) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(recordNode(p)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordNode 按字段顺序构造 YAML 树，所有字符串值使用双引号风格，
// 保证前导空行、行尾空格、CRLF 以及 "null"/"~" 之类的值原样往返。
func recordNode(p Persona) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode}
	str := func(key, value string) {
		root.Content = append(root.Content, keyNode(key), quotedNode(value))
	}
	list := func(key string, values []string) {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Content: make([]*yaml.Node, 0, len(values))}
		for _, v := range values {
			seq.Content = append(seq.Content, quotedNode(v))
		}
		root.Content = append(root.Content, keyNode(key), seq)
	}

	str("persona", p.Persona)
	str("professional_persona", p.ProfessionalPersona)
	str("sports_persona", p.SportsPersona)
	str("arts_persona", p.ArtsPersona)
	str("travel_persona", p.TravelPersona)
	str("culinary_persona", p.CulinaryPersona)
	str("skills_and_expertise", p.SkillsAndExpertise)
	list("skills_and_expertise_list", p.SkillsAndExpertiseList)
	str("hobbies_and_interests", p.HobbiesAndInterests)
	list("hobbies_and_interests_list", p.HobbiesAndInterestsList)
	str("career_goals_and_ambitions", p.CareerGoalsAndAmbitions)
	return root
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func quotedNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: value}
}

func decodeRecord(data []byte) (Persona, error) {
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Persona{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return rec.ToPersona()
}
