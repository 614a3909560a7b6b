package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "worked_example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "worked_example", s.Name)
	assert.Equal(t, []string{"alice", "bob"}, s.Users)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, ExpectOK, s.Steps[0].Expected())
	assert.Equal(t, "InitializationConflict", s.Steps[4].Expected())
	require.NotNil(t, s.Steps[5].PostID)
	assert.Equal(t, uint64(1), *s.Steps[5].PostID)
	assert.Nil(t, s.Steps[1].PostID)
}

func TestLoadScenario_PresetMaxCounter(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "overflow.yaml"))
	require.NoError(t, err)

	require.Len(t, s.Presets, 2)
	assert.Equal(t, uint64(18446744073709551615), s.Presets[0].Profile.LastPostID)
	assert.Equal(t, uint64(18446744073709551615), s.Presets[1].Post.LikeCount)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "invalid", "unknown_field.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestParseScenario_Validation(t *testing.T) {
	const base = `
name: s
description: d
users: [alice]
`
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown user",
			yaml: base + `
steps: [{action: create_profile, user: mallory, username: m}]
assertions: [{type: log_count, count: 1}]`,
			want: `unknown user "mallory"`,
		},
		{
			name: "unknown action",
			yaml: base + `
steps: [{action: delete_post, user: alice}]
assertions: [{type: log_count, count: 1}]`,
			want: `unknown action "delete_post"`,
		},
		{
			name: "like without post id",
			yaml: base + `
steps: [{action: like_post, user: alice, author: alice}]
assertions: [{type: log_count, count: 1}]`,
			want: "post_id is required",
		},
		{
			name: "profile without username",
			yaml: base + `
steps: [{action: create_profile, user: alice}]
assertions: [{type: log_count, count: 1}]`,
			want: "username is required",
		},
		{
			name: "preset with both records",
			yaml: base + `
presets:
  - profile: {owner: alice, username: a}
    post: {author: alice, post_id: 1}
steps: [{action: create_post, user: alice, content: c}]
assertions: [{type: log_count, count: 1}]`,
			want: "exactly one of profile or post",
		},
		{
			name: "like assertion without exists",
			yaml: base + `
steps: [{action: create_post, user: alice, content: c}]
assertions: [{type: like, author: alice, user: alice, post_id: 1}]`,
			want: "exists is required",
		},
		{
			name: "unknown assertion",
			yaml: base + `
steps: [{action: create_post, user: alice, content: c}]
assertions: [{type: final_state}]`,
			want: `unknown assertion type "final_state"`,
		},
		{
			name: "no steps",
			yaml: base + `
steps: []
assertions: [{type: log_count, count: 1}]`,
			want: "steps list is required",
		},
		{
			name: "no users",
			yaml: `
name: s
description: d
steps: [{action: create_post, user: alice, content: c}]
assertions: [{type: log_count, count: 1}]`,
			want: "users list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
