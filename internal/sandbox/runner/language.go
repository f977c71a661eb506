package runner

import (
	appErr "arbiter/pkg/errors"
)

// LanguageSpec describes how submissions in one language are built and run.
// Compiled languages carry a CompileCmd; interpreted ones leave it empty and
// RunCmd references {src} directly.
type LanguageSpec struct {
	Name       string `yaml:"name"`
	SourceFile string `yaml:"source_file"`
	BinaryFile string `yaml:"binary_file"`
	CompileCmd string `yaml:"compile_cmd"`
	RunCmd     string `yaml:"run_cmd"`
	Profile    string `yaml:"profile"`

	// Multipliers stretch the problem limits for slower runtimes.
	TimeMultiplier   float64 `yaml:"time_multiplier"`
	MemoryMultiplier float64 `yaml:"memory_multiplier"`
}

func (l LanguageSpec) Compiled() bool {
	return l.CompileCmd != ""
}

func (l LanguageSpec) Validate() error {
	if l.Name == "" {
		return appErr.ValidationError("name", "required")
	}
	if l.SourceFile == "" {
		return appErr.ValidationError("source_file", "required")
	}
	if l.RunCmd == "" {
		return appErr.ValidationError("run_cmd", "required")
	}
	if l.Compiled() && l.BinaryFile == "" {
		return appErr.ValidationError("binary_file", "required for compiled languages")
	}
	return nil
}

// LanguageRepository resolves a language name to its spec.
type LanguageRepository interface {
	GetLanguage(name string) (LanguageSpec, error)
}

// StaticLanguages is a LanguageRepository backed by a fixed map, as loaded
// from the competition packet.
type StaticLanguages struct {
	byName map[string]LanguageSpec
}

func NewStaticLanguages(specs []LanguageSpec) (*StaticLanguages, error) {
	byName := make(map[string]LanguageSpec, len(specs))
	for _, ls := range specs {
		if err := ls.Validate(); err != nil {
			return nil, appErr.Wrapf(err, appErr.PacketInvalid, "language %q: %v", ls.Name, err)
		}
		if _, dup := byName[ls.Name]; dup {
			return nil, appErr.Newf(appErr.PacketInvalid, "duplicate language %q", ls.Name)
		}
		byName[ls.Name] = ls
	}
	return &StaticLanguages{byName: byName}, nil
}

func (s *StaticLanguages) GetLanguage(name string) (LanguageSpec, error) {
	ls, ok := s.byName[name]
	if !ok {
		return LanguageSpec{}, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", name)
	}
	return ls, nil
}

func (s *StaticLanguages) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	return names
}
