package langconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	lang, err := r.Get("cpp17")
	require.NoError(t, err)
	assert.Equal(t, "gcc:13", lang.BaseImage)
	assert.True(t, r.IsSupported("cpp17"))
	assert.Equal(t, []string{"cpp17"}, r.Supported())
}

func TestGetUndefinedLanguage(t *testing.T) {
	r := Default()

	_, err := r.Get("brainfuck")
	require.Error(t, err)

	var undefErr *ErrUndefinedLanguage
	require.ErrorAs(t, err, &undefErr)
	assert.Equal(t, "brainfuck", undefErr.ID)
	assert.False(t, r.IsSupported("brainfuck"))
}

func TestBuildCommandSourceOrder(t *testing.T) {
	lang := LanguageConfig{
		ID:        "cpp17",
		BaseImage: "gcc:13",
		Compiler:  "g++ -std=c++17 -O2",
	}

	cmd := lang.BuildCommand("entry", []string{"util.cpp", "main.cpp"})
	assert.Equal(t, "g++ -std=c++17 -O2 -o entry util.cpp main.cpp", cmd)
}

func TestLoadRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.toml")
	content := `
[[languages]]
id = "cpp17"
base_image = "gcc:13"
compiler = "g++ -std=c++17 -O2"

[[languages]]
id = "c11"
base_image = "gcc:13"
compiler = "gcc -std=c11 -O2"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"c11", "cpp17"}, r.Supported())

	lang, err := r.Get("c11")
	require.NoError(t, err)
	assert.Equal(t, "gcc -std=c11 -O2", lang.Compiler)
}

func TestLoadRejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.toml")
	content := `
[[languages]]
id = "cpp17"
base_image = "gcc:13"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmptyRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
