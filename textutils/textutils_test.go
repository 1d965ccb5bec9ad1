package textutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndentString(t *testing.T) {
	require := require.New(t)

	require.Equal(`  Hello
  World`,
		IndentString(`Hello
World`, "  ", 1),
	)

	require.Equal(`  Hello
  World
`,
		IndentString(`Hello
World
`, "  ", 1),
	)

	require.Equal(`  Hello
  World
`,
		IndentString(`Hello
World
  `, "  ", 1),
	)

	require.Equal(`  Hello

  World
`,
		IndentString(`Hello
  
World
`, "  ", 1),
	)
}

func TestCommentString(t *testing.T) {
	require := require.New(t)

	require.Equal("", CommentString("  \n"))
	require.Equal("// Creates a global session.\n", CommentString("Creates a global session."))
	require.Equal(`// First paragraph.
//
// Second paragraph.
`, CommentString("First paragraph.\n\nSecond paragraph.\n\n"))
}

func TestExportedName(t *testing.T) {
	require := require.New(t)

	for in, want := range map[string]string{
		"slang_createGlobalSession": "SlangCreateGlobalSession",
		"slang_IGlobalSession":      "SlangIGlobalSession",
		"SlangResult":               "SlangResult",
		"FooUUID":                   "FooUUID",
		"queryInterface":            "QueryInterface",
		"__va_list_tag":             "VaListTag",
		"_3d":                       "X3d",
		"_":                         "X",
	} {
		require.Equal(want, ExportedName(in), in)
	}
}
