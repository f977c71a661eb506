// Package packet loads and validates the competition packet: the single
// YAML document that defines languages, problems, test data, accounts and
// judge limits for one competition.
package packet

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"arbiter/internal/sandbox/runner"
	"arbiter/internal/sandbox/spec"
	appErr "arbiter/pkg/errors"
)

// Packet is the root of the competition definition.
type Packet struct {
	Name            string                `yaml:"name"`
	DurationMinutes int64                 `yaml:"duration_minutes"`
	Languages       []runner.LanguageSpec `yaml:"languages"`
	Problems        []Problem             `yaml:"problems"`
	Accounts        []Account             `yaml:"accounts"`
	Judge           JudgeSettings         `yaml:"judge"`
	Hooks           HookSettings          `yaml:"hooks"`

	// baseDir anchors relative test-data paths; set by Load.
	baseDir string
}

// Problem is one task of the competition.
type Problem struct {
	ID          string             `yaml:"id"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Tests       []TestCase         `yaml:"tests"`
	Limits      spec.ResourceLimit `yaml:"limits"`
}

// TestCase pairs an input with its expected output. An inline value, even
// an empty string, takes precedence over the file reference. Hidden tests
// are scored but their data and outcomes are redacted for contestants.
type TestCase struct {
	ID         string  `yaml:"id"`
	Input      *string `yaml:"input"`
	InputFile  string  `yaml:"input_file"`
	Expected   *string `yaml:"expected"`
	OutputFile string  `yaml:"output_file"`
	Hidden     bool    `yaml:"hidden"`
	Weight     float64 `yaml:"weight"`
}

// Account is a pre-provisioned login. PasswordHash is a bcrypt hash.
type Account struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

const (
	RoleAdmin      = "admin"
	RoleContestant = "contestant"
	RoleSpectator  = "spectator"
)

// JudgeSettings carries the competition-wide judging defaults.
type JudgeSettings struct {
	DefaultLimits  spec.ResourceLimit `yaml:"default_limits"`
	CompileLimits  spec.ResourceLimit `yaml:"compile_limits"`
	TrimOutput     bool               `yaml:"trim_output"`
	TestParallel   int                `yaml:"test_parallelism"`
	MaxSubmissions int                `yaml:"max_submissions"`
	MaxCodeBytes   int64              `yaml:"max_code_bytes"`
}

// HookSettings names the Lua scripts fired on competition events.
type HookSettings struct {
	OnComplete             string `yaml:"on_complete"`
	OnPause                string `yaml:"on_pause"`
	OnUnpause              string `yaml:"on_unpause"`
	OnTestEvaluation       string `yaml:"on_test_evaluation"`
	OnSubmissionEvaluation string `yaml:"on_submission_evaluation"`
	OnAnnouncement         string `yaml:"on_announcement"`
	OnCheckIn              string `yaml:"on_check_in"`
}

// Load reads and validates a packet from a YAML file. Relative test-data
// paths resolve against the file's directory.
func Load(path string) (*Packet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.PacketInvalid, "read packet file failed")
	}
	pkt, err := Parse(data)
	if err != nil {
		return nil, err
	}
	pkt.baseDir = filepath.Dir(path)
	return pkt, nil
}

// Parse decodes and validates a packet from raw YAML.
func Parse(data []byte) (*Packet, error) {
	var pkt Packet
	if err := yaml.Unmarshal(data, &pkt); err != nil {
		return nil, appErr.Wrapf(err, appErr.PacketInvalid, "decode packet failed")
	}
	if err := pkt.Validate(); err != nil {
		return nil, err
	}
	pkt.applyDefaults()
	return &pkt, nil
}

func (p *Packet) Validate() error {
	if p.Name == "" {
		return appErr.Newf(appErr.PacketInvalid, "packet name is required")
	}
	if len(p.Languages) == 0 {
		return appErr.Newf(appErr.PacketInvalid, "packet defines no languages")
	}
	for _, lang := range p.Languages {
		if err := lang.Validate(); err != nil {
			return appErr.Wrapf(err, appErr.PacketInvalid, "language %q: %v", lang.Name, err)
		}
	}
	if len(p.Problems) == 0 {
		return appErr.Newf(appErr.PacketInvalid, "packet defines no problems")
	}
	seen := make(map[string]bool, len(p.Problems))
	for _, prob := range p.Problems {
		if prob.ID == "" {
			return appErr.Newf(appErr.PacketInvalid, "problem with empty id")
		}
		if seen[prob.ID] {
			return appErr.Newf(appErr.PacketInvalid, "duplicate problem %q", prob.ID)
		}
		seen[prob.ID] = true
		if len(prob.Tests) == 0 {
			return appErr.Newf(appErr.PacketInvalid, "problem %q has no tests", prob.ID)
		}
		testIDs := make(map[string]bool, len(prob.Tests))
		for _, tc := range prob.Tests {
			if tc.ID == "" {
				return appErr.Newf(appErr.TestCaseInvalid, "problem %q: test with empty id", prob.ID)
			}
			if testIDs[tc.ID] {
				return appErr.Newf(appErr.TestCaseInvalid, "problem %q: duplicate test %q", prob.ID, tc.ID)
			}
			testIDs[tc.ID] = true
			if tc.Input == nil && tc.InputFile == "" {
				return appErr.Newf(appErr.TestCaseInvalid, "problem %q test %q: no input", prob.ID, tc.ID)
			}
			if tc.Expected == nil && tc.OutputFile == "" {
				return appErr.Newf(appErr.TestCaseInvalid, "problem %q test %q: no expected output", prob.ID, tc.ID)
			}
			if tc.Weight < 0 {
				return appErr.Newf(appErr.TestCaseInvalid, "problem %q test %q: negative weight", prob.ID, tc.ID)
			}
		}
	}
	for _, acc := range p.Accounts {
		if acc.Username == "" || acc.PasswordHash == "" {
			return appErr.Newf(appErr.PacketInvalid, "account with missing username or password hash")
		}
		switch acc.Role {
		case RoleAdmin, RoleContestant, RoleSpectator, "":
		default:
			return appErr.Newf(appErr.PacketInvalid, "account %q: unknown role %q", acc.Username, acc.Role)
		}
	}
	return nil
}

func (p *Packet) applyDefaults() {
	if p.Judge.TestParallel <= 0 {
		p.Judge.TestParallel = 1
	}
	if p.Judge.MaxCodeBytes <= 0 {
		p.Judge.MaxCodeBytes = 256 * 1024
	}
	for pi := range p.Problems {
		prob := &p.Problems[pi]
		prob.Limits = spec.Merge(p.Judge.DefaultLimits, prob.Limits)
		for ti := range prob.Tests {
			if prob.Tests[ti].Weight == 0 {
				prob.Tests[ti].Weight = 1
			}
		}
	}
	for ai := range p.Accounts {
		if p.Accounts[ai].Role == "" {
			p.Accounts[ai].Role = RoleContestant
		}
	}
}

// Problem looks up a problem by ID.
func (p *Packet) Problem(id string) (Problem, error) {
	for _, prob := range p.Problems {
		if prob.ID == id {
			return prob, nil
		}
	}
	return Problem{}, appErr.Newf(appErr.ProblemNotFound, "problem %q not found", id)
}

// Account looks up an account by username.
func (p *Packet) Account(username string) (Account, bool) {
	for _, acc := range p.Accounts {
		if acc.Username == username {
			return acc, true
		}
	}
	return Account{}, false
}

// InputBytes returns the test input, reading the referenced file when the
// value is not inline.
func (p *Packet) InputBytes(tc TestCase) ([]byte, error) {
	if tc.Input != nil {
		return []byte(*tc.Input), nil
	}
	return p.readDataFile(tc.InputFile)
}

// ExpectedBytes returns the expected output for a test.
func (p *Packet) ExpectedBytes(tc TestCase) ([]byte, error) {
	if tc.Expected != nil {
		return []byte(*tc.Expected), nil
	}
	return p.readDataFile(tc.OutputFile)
}

func (p *Packet) readDataFile(name string) ([]byte, error) {
	if name == "" {
		return nil, appErr.Newf(appErr.TestCaseInvalid, "empty data file reference")
	}
	path := name
	if !filepath.IsAbs(path) && p.baseDir != "" {
		path = filepath.Join(p.baseDir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.TestCaseInvalid, "read test data %q failed", name)
	}
	return data, nil
}
