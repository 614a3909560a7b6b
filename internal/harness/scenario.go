package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/socialledger/internal/program"
)

// Scenario defines a ledger test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also prefixes every nonce
	// and names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Users lists the participants. Each name maps to a deterministic keypair.
	Users []string `yaml:"users"`

	// Presets are written directly to the store before any step runs.
	Presets []Preset `yaml:"presets,omitempty"`

	// Steps are submitted one at a time, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Preset is exactly one record to seed.
type Preset struct {
	Profile *ProfilePreset `yaml:"profile,omitempty"`
	Post    *PostPreset    `yaml:"post,omitempty"`
}

// ProfilePreset seeds a profile at its derived address.
type ProfilePreset struct {
	Owner      string `yaml:"owner"`
	Username   string `yaml:"username"`
	LastPostID uint64 `yaml:"last_post_id"`
}

// PostPreset seeds a post at its derived address.
type PostPreset struct {
	Author    string `yaml:"author"`
	PostID    uint64 `yaml:"post_id"`
	Content   string `yaml:"content"`
	LikeCount uint64 `yaml:"like_count"`
}

// Step is one instruction submitted by User.
type Step struct {
	// Action is create_profile, create_post or like_post.
	Action string `yaml:"action"`

	// User signs the transaction.
	User string `yaml:"user"`

	// Username is the create_profile argument.
	Username string `yaml:"username,omitempty"`

	// Content is the create_post argument.
	Content string `yaml:"content,omitempty"`

	// PostID is the id create_post claims (default: next) or the post
	// like_post targets (required).
	PostID *uint64 `yaml:"post_id,omitempty"`

	// Author owns the post like_post targets.
	Author string `yaml:"author,omitempty"`

	// Expect is "ok" or an error code. Empty means "ok".
	Expect string `yaml:"expect,omitempty"`
}

// ExpectOK is the expectation of a successful step.
const ExpectOK = "ok"

// Expected returns the step's expectation with the default applied.
func (s Step) Expected() string {
	if s.Expect == "" {
		return ExpectOK
	}
	return s.Expect
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Owner selects a profile (profile).
	Owner string `yaml:"owner,omitempty"`

	// Author and PostID select a post (post, like).
	Author string `yaml:"author,omitempty"`
	PostID uint64 `yaml:"post_id,omitempty"`

	// User selects the liker (like).
	User string `yaml:"user,omitempty"`

	// Exists checks presence (profile, post, like).
	Exists *bool `yaml:"exists,omitempty"`

	// Expect holds record fields to compare (profile, post).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Action and Outcome filter trace events (trace_count).
	Action  string `yaml:"action,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Status filters the transaction log (log_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of matches (log_count, trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertProfile    = "profile"
	AssertPost       = "post"
	AssertLike       = "like"
	AssertLogCount   = "log_count"
	AssertTraceCount = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and user references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Users) == 0 {
		return fmt.Errorf("users list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	known := func(where, name string) error {
		if !slices.Contains(s.Users, name) {
			return fmt.Errorf("%s: unknown user %q", where, name)
		}
		return nil
	}

	for i, p := range s.Presets {
		where := fmt.Sprintf("presets[%d]", i)
		switch {
		case (p.Profile == nil) == (p.Post == nil):
			return fmt.Errorf("%s: exactly one of profile or post is required", where)
		case p.Profile != nil:
			if err := known(where, p.Profile.Owner); err != nil {
				return err
			}
		default:
			if err := known(where, p.Post.Author); err != nil {
				return err
			}
		}
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if err := known(where, step.User); err != nil {
			return err
		}
		switch step.Action {
		case program.CreateProfileIx:
			if step.Username == "" {
				return fmt.Errorf("%s: username is required for create_profile", where)
			}
		case program.CreatePostIx:
		case program.LikePostIx:
			if err := known(where, step.Author); err != nil {
				return err
			}
			if step.PostID == nil {
				return fmt.Errorf("%s: post_id is required for like_post", where)
			}
		default:
			return fmt.Errorf("%s: unknown action %q", where, step.Action)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, known); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, known func(where, name string) error) error {
	where := fmt.Sprintf("assertions[%d]", index)
	switch a.Type {
	case "":
		return fmt.Errorf("%s: type is required", where)
	case AssertProfile:
		if err := known(where, a.Owner); err != nil {
			return err
		}
		if a.Exists == nil && len(a.Expect) == 0 {
			return fmt.Errorf("%s: expect or exists is required for profile", where)
		}
	case AssertPost:
		if err := known(where, a.Author); err != nil {
			return err
		}
		if a.Exists == nil && len(a.Expect) == 0 {
			return fmt.Errorf("%s: expect or exists is required for post", where)
		}
	case AssertLike:
		if err := known(where, a.Author); err != nil {
			return err
		}
		if err := known(where, a.User); err != nil {
			return err
		}
		if a.Exists == nil {
			return fmt.Errorf("%s: exists is required for like", where)
		}
	case AssertLogCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", where)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("%s: action is required for trace_count", where)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}
