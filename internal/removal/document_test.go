package removal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/removal"
)

func TestDocumentSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "removal-config.yml")

	doc := testDocument()
	doc.Services.Children[removal.NodePiHole].Enabled = true
	doc.Services.Children[removal.NodePiHole].Path = "/opt/deathstar/pihole"
	doc.Services.Children[removal.NodePiHole].Impact = "DNS filtering stops"

	require.NoError(t, doc.Save(path))

	loaded, err := removal.Load(path)
	require.NoError(t, err)

	pihole := loaded.Services.Children[removal.NodePiHole]
	require.NotNil(t, pihole)
	assert.True(t, pihole.Enabled)
	assert.Equal(t, "/opt/deathstar/pihole", pihole.Path)
	assert.Equal(t, "DNS filtering stops", pihole.Impact)
	assert.False(t, loaded.Services.Enabled)
	assert.Equal(t, removal.DocumentVersion, loaded.Version)
}

func TestLoadCoercesHandEditedScalars(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "removal-config.yml")

	// Operators hand-edit this file; "enabled: 1" and quoted booleans happen.
	content := `
version: "1.0"
services:
  enabled: "true"
  children:
    pi_hole:
      enabled: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	doc, err := removal.Load(path)
	require.NoError(t, err)

	assert.True(t, doc.Services.Enabled)
	assert.True(t, doc.Services.Children[removal.NodePiHole].Enabled)
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "removal-config.yml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - not yaml: ["), 0644))

	_, err := removal.Load(path)
	require.Error(t, err)

	var malformedErr removal.MalformedDocumentError
	require.ErrorAs(t, err, &malformedErr)
}

func TestLoadRejectsNewerDocumentVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "removal-config.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0644))

	_, err := removal.Load(path)
	require.Error(t, err)

	var versionErr removal.UnsupportedDocumentVersionError
	require.ErrorAs(t, err, &versionErr)
	assert.Equal(t, "2.0", versionErr.Version)
}

func TestLoadToleratesMissingVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "removal-config.yml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  enabled: true\n"), 0644))

	doc, err := removal.Load(path)
	require.NoError(t, err)
	assert.True(t, doc.Services.Enabled)
}

func TestEnableAllReachesEveryNode(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.EnableAll()

	assert.True(t, doc.Services.Enabled)
	assert.True(t, doc.Services.Children[removal.NodePiHole].Enabled)
	assert.True(t, doc.Services.Children[removal.NodeMonitoring].Children[removal.NodeGrafana].Enabled)
	assert.True(t, doc.SystemReboot.Enabled)
}

func TestDeleteMissingDocumentIsNoError(t *testing.T) {
	t.Parallel()

	require.NoError(t, removal.Delete(filepath.Join(t.TempDir(), "no-such-file.yml")))
}
