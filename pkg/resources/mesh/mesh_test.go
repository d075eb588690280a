// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mesh_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/slaac/pkg/resources/mesh"
)

func TestSlaacConfigDeepCopy(t *testing.T) {
	cfg := mesh.NewSlaacConfig(mesh.NamespaceName, mesh.SlaacConfigID)
	cfg.TypedSpec().Enabled = true
	cfg.TypedSpec().ExcludeSubnets = []netip.Prefix{netip.MustParsePrefix("fd00:1::/48")}

	copied, ok := cfg.DeepCopy().(*mesh.SlaacConfig)
	require.True(t, ok)

	// mutating the copy should not leak into the original
	copied.TypedSpec().ExcludeSubnets[0] = netip.MustParsePrefix("fd00:2::/48")

	assert.Equal(t, netip.MustParsePrefix("fd00:1::/48"), cfg.TypedSpec().ExcludeSubnets[0])
}

func TestAdvertisedPrefixID(t *testing.T) {
	prefix := netip.MustParsePrefix("fd00:1::/64")

	res := mesh.NewAdvertisedPrefix(mesh.NamespaceName, prefix.String())
	res.TypedSpec().Prefix = prefix

	assert.Equal(t, "fd00:1::/64", res.Metadata().ID())
}
