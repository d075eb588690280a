// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mesh

import (
	"net/netip"
	"slices"

	"github.com/cosi-project/runtime/pkg/resource"
	"github.com/cosi-project/runtime/pkg/resource/meta"
	"github.com/cosi-project/runtime/pkg/resource/typed"
)

// SlaacConfigType is type of SlaacConfig resource.
const SlaacConfigType = resource.Type("SlaacConfigs.mesh.slaac.dev")

// SlaacConfigID is the ID of the singleton instance.
const SlaacConfigID resource.ID = "slaac"

// SlaacConfig resource holds the runtime configuration of the SLAAC engine.
type SlaacConfig = typed.Resource[SlaacConfigSpec, SlaacConfigExtension]

// SlaacConfigSpec describes the SLAAC engine configuration.
type SlaacConfigSpec struct {
	Enabled bool `yaml:"enabled"`
	// ExcludeSubnets lists subnets which should not get a SLAAC address even
	// when advertised as SLAAC-eligible.
	ExcludeSubnets []netip.Prefix `yaml:"excludeSubnets"`
}

// DeepCopy generates a deep copy of SlaacConfigSpec.
func (spec SlaacConfigSpec) DeepCopy() SlaacConfigSpec {
	cp := spec
	cp.ExcludeSubnets = slices.Clone(spec.ExcludeSubnets)

	return cp
}

// NewSlaacConfig initializes a SlaacConfig resource.
func NewSlaacConfig(namespace resource.Namespace, id resource.ID) *SlaacConfig {
	return typed.NewResource[SlaacConfigSpec, SlaacConfigExtension](
		resource.NewMetadata(namespace, SlaacConfigType, id, resource.VersionUndefined),
		SlaacConfigSpec{},
	)
}

// SlaacConfigExtension provides auxiliary methods for SlaacConfig.
type SlaacConfigExtension struct{}

// ResourceDefinition implements [typed.Extension] interface.
func (SlaacConfigExtension) ResourceDefinition() meta.ResourceDefinitionSpec {
	return meta.ResourceDefinitionSpec{
		Type:             SlaacConfigType,
		Aliases:          []resource.Type{},
		DefaultNamespace: NamespaceName,
		PrintColumns: []meta.PrintColumn{
			{
				Name:     "Enabled",
				JSONPath: `{.enabled}`,
			},
			{
				Name:     "Exclude Subnets",
				JSONPath: `{.excludeSubnets}`,
			},
		},
	}
}
