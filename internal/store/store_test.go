package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"kitchen-scene":    "kitchen-scene",
		"my scene (final)": "my_scene__final_",
		"../../etc/passwd": "_.._etc_passwd",
		"...hidden":        "hidden",
		"Scene_01.v2":      "Scene_01.v2",
		"übersicht":        "_bersicht",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}

func TestJobPathIsDeterministic(t *testing.T) {
	assert.Equal(t, "users/7/kitchen", JobPath(7, "kitchen"))
	assert.Equal(t, JobPath(7, "a b"), JobPath(7, "a b"))
	assert.Equal(t, "users/7/a_b", JobPath(7, "a b"))
}
