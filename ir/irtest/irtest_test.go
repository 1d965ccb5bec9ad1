package irtest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slang-go/slang/ir/irtest"
)

func TestBuildModule(t *testing.T) {
	require := require.New(t)

	mod := irtest.BuildModule(t)
	require.NotNil(mod.Records["foo_TargetDesc"])
	require.NotNil(mod.Functions["foo_createSession"])
	require.NotNil(mod.Consts["FOO_API_VERSION"])
}
