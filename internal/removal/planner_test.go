package removal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/removal"
)

// testDocument builds the canonical shape used throughout these tests:
//
//	services:             pi_hole, monitoring{grafana, prometheus}
//	infrastructure:       docker
//	system_modifications: boot_config
//	system_packages:      git
//	cleanup_files:        state_directory
//	system_reboot:        (leaf)
func testDocument() *removal.Document {
	return &removal.Document{
		Version: removal.DocumentVersion,
		Services: &removal.Node{
			Children: map[string]*removal.Node{
				removal.NodePiHole: {Description: "Pi-hole"},
				removal.NodeMonitoring: {
					Description: "Monitoring",
					Children: map[string]*removal.Node{
						removal.NodeGrafana:    {Description: "Grafana"},
						removal.NodePrometheus: {Description: "Prometheus"},
					},
				},
			},
		},
		Infrastructure: &removal.Node{
			Children: map[string]*removal.Node{
				removal.NodeDocker: {Description: "Docker"},
			},
		},
		SystemModifications: &removal.Node{
			Children: map[string]*removal.Node{
				removal.NodeBootConfig: {Description: "Boot config"},
			},
		},
		SystemPackages: &removal.Node{
			Children: map[string]*removal.Node{
				"git": {Description: "git"},
			},
		},
		CleanupFiles: &removal.Node{
			Children: map[string]*removal.Node{
				removal.NodeStateDirectory: {Description: "State directory"},
			},
		},
		SystemReboot: &removal.Node{Description: "Reboot"},
	}
}

func planIDs(plan []removal.PlanItem) []string {
	ids := make([]string, 0, len(plan))
	for _, item := range plan {
		ids = append(ids, item.ID())
	}

	return ids
}

func TestEnabledParentCascadesToEveryDepth(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.Services.Enabled = true

	planner := removal.NewPlanner(doc)

	effective, err := planner.Effective(removal.CategoryServices, removal.NodePiHole)
	require.NoError(t, err)
	assert.True(t, effective)

	// Two levels down: services -> monitoring -> grafana.
	effective, err = planner.Effective(removal.CategoryServices, removal.NodeMonitoring, removal.NodeGrafana)
	require.NoError(t, err)
	assert.True(t, effective)

	// The cascade stays inside the enabled subtree.
	effective, err = planner.Effective(removal.CategoryInfrastructure, removal.NodeDocker)
	require.NoError(t, err)
	assert.False(t, effective)
}

func TestIndependentChildEnableDoesNotAffectSiblings(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.Services.Children[removal.NodePiHole].Enabled = true

	planner := removal.NewPlanner(doc)

	effective, err := planner.Effective(removal.CategoryServices, removal.NodePiHole)
	require.NoError(t, err)
	assert.True(t, effective)

	effective, err = planner.Effective(removal.CategoryServices, removal.NodeMonitoring)
	require.NoError(t, err)
	assert.False(t, effective)

	effective, err = planner.Effective(removal.CategoryServices, removal.NodeMonitoring, removal.NodeGrafana)
	require.NoError(t, err)
	assert.False(t, effective)

	assert.Equal(t, []string{"services.pi_hole"}, planIDs(planner.Plan()))
}

func TestDisabledParentKeepsIndependentlyEnabledChild(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.Services.Enabled = false
	doc.Services.Children[removal.NodeMonitoring].Children[removal.NodePrometheus].Enabled = true

	planner := removal.NewPlanner(doc)

	effective, err := planner.Effective(removal.CategoryServices, removal.NodeMonitoring, removal.NodePrometheus)
	require.NoError(t, err)
	assert.True(t, effective)
}

func TestAllDisabledYieldsNoOp(t *testing.T) {
	t.Parallel()

	planner := removal.NewPlanner(testDocument())

	assert.False(t, planner.HasAnyEnabled())
	assert.Empty(t, planner.Plan())
}

func TestHasAnyEnabledFindsDeepNodes(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.Services.Children[removal.NodeMonitoring].Children[removal.NodeGrafana].Enabled = true

	assert.True(t, removal.NewPlanner(doc).HasAnyEnabled())
}

func TestPlanFollowsCategoryOrder(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.EnableAll()

	plan := removal.NewPlanner(doc).Plan()

	assert.Equal(t, []string{
		"services.monitoring.grafana",
		"services.monitoring.prometheus",
		"services.pi_hole",
		"infrastructure.docker",
		"system_modifications.boot_config",
		"system_packages.git",
		"cleanup_files.state_directory",
		"system_reboot",
	}, planIDs(plan))
}

func TestPlanContainsOnlyLeaves(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.Services.Children[removal.NodeMonitoring].Enabled = true

	plan := removal.NewPlanner(doc).Plan()

	assert.Equal(t, []string{
		"services.monitoring.grafana",
		"services.monitoring.prometheus",
	}, planIDs(plan))
}

func TestIsEnabledIgnoresAncestors(t *testing.T) {
	t.Parallel()

	doc := testDocument()
	doc.Services.Enabled = true

	planner := removal.NewPlanner(doc)

	enabled, err := planner.IsEnabled(removal.CategoryServices, removal.NodePiHole)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestEffectiveUnknownPath(t *testing.T) {
	t.Parallel()

	planner := removal.NewPlanner(testDocument())

	_, err := planner.Effective(removal.CategoryServices, "no_such_service")
	require.Error(t, err)

	var nodeErr removal.NoSuchNodeError
	require.ErrorAs(t, err, &nodeErr)

	_, err = planner.Effective("no_such_category")
	require.Error(t, err)

	_, err = planner.Effective()
	require.Error(t, err)
}
