package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvService_TypedGetters(t *testing.T) {
	t.Setenv("DVD_TEST_INT", "12")
	t.Setenv("DVD_TEST_BAD_INT", "twelve")
	t.Setenv("DVD_TEST_BOOL", "true")
	t.Setenv("DVD_TEST_FLOAT", "0.5")
	t.Setenv("DVD_TEST_DUR", "90s")
	t.Setenv("DVD_TEST_DUR_SECS", "2.5")
	t.Setenv("DVD_TEST_STR", "gpt")

	e := &EnvService{}

	assert.Equal(t, 12, e.GetInt("DVD_TEST_INT", 1))
	assert.Equal(t, 1, e.GetInt("DVD_TEST_BAD_INT", 1))
	assert.Equal(t, 7, e.GetInt("DVD_TEST_UNSET", 7))
	assert.True(t, e.GetBool("DVD_TEST_BOOL", false))
	assert.Equal(t, 0.5, e.GetFloat("DVD_TEST_FLOAT", 1))
	assert.Equal(t, 90*time.Second, e.GetDuration("DVD_TEST_DUR", time.Second))
	assert.Equal(t, 2500*time.Millisecond, e.GetDuration("DVD_TEST_DUR_SECS", time.Second))
	assert.Equal(t, time.Second, e.GetDuration("DVD_TEST_UNSET", time.Second))
	assert.Equal(t, "gpt", e.GetWithDefault("DVD_TEST_STR", "x"))
	assert.Equal(t, "x", e.GetWithDefault("DVD_TEST_UNSET", "x"))
}
