package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runFunc func() int

func (f runFunc) Run() int { return f() }

func TestSetupSuite_ClosesOnCleanup(t *testing.T) {
	f := newFixture(t)

	t.Run("suite", func(t *testing.T) {
		s := SetupSuite(t, "/work/unit/foo_test.go", f.config())
		require.NotNil(t, s)
		assert.False(t, f.browser.closed)
	})
	assert.True(t, f.browser.closed)
}

func TestMainSuite_BindsAndCloses(t *testing.T) {
	f := newFixture(t)
	suite := f.addPlayground(t, "foo", nil)

	var bound *Session
	code := MainSuite(runFunc(func() int {
		require.NotNil(t, bound)
		assert.Equal(t, "http://localhost:5173/", bound.URL())
		return 0
	}), suite, func(s *Session) { bound = s }, f.config())

	assert.Equal(t, 0, code)
	assert.True(t, f.browser.closed)
}

func TestMainSuite_SetupErrorFailsRun(t *testing.T) {
	f := newFixture(t)
	f.page.navErr = errors.New("net::ERR_CONNECTION_REFUSED")
	suite := f.addPlayground(t, "foo", nil)

	ran := false
	code := MainSuite(runFunc(func() int { ran = true; return 0 }), suite, nil, f.config())

	assert.True(t, ran)
	assert.Equal(t, 1, code)
}

func TestMainSuite_ConnectFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.RemoveAll(testSetupDir))

	ran := false
	code := MainSuite(runFunc(func() int { ran = true; return 0 }), "/work/unit/foo_test.go", nil, f.config())

	assert.False(t, ran)
	assert.Equal(t, 1, code)
}
