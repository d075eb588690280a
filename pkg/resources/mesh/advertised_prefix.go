// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mesh

import (
	"net/netip"

	"github.com/cosi-project/runtime/pkg/resource"
	"github.com/cosi-project/runtime/pkg/resource/meta"
	"github.com/cosi-project/runtime/pkg/resource/typed"
)

// AdvertisedPrefixType is type of AdvertisedPrefix resource.
const AdvertisedPrefixType = resource.Type("AdvertisedPrefixes.mesh.slaac.dev")

// AdvertisedPrefix resource holds a single prefix advertised across the mesh.
//
// The resource ID is the canonical string form of the prefix. The resource is
// written by the network-data agent; the SLAAC engine only reads it.
type AdvertisedPrefix = typed.Resource[AdvertisedPrefixSpec, AdvertisedPrefixExtension]

// AdvertisedPrefixSpec describes an advertised prefix.
type AdvertisedPrefixSpec struct {
	Prefix    netip.Prefix `yaml:"prefix"`
	SLAAC     bool         `yaml:"slaac"`
	Preferred bool         `yaml:"preferred"`
}

// DeepCopy generates a deep copy of AdvertisedPrefixSpec.
func (spec AdvertisedPrefixSpec) DeepCopy() AdvertisedPrefixSpec {
	return spec
}

// NewAdvertisedPrefix initializes an AdvertisedPrefix resource.
func NewAdvertisedPrefix(namespace resource.Namespace, id resource.ID) *AdvertisedPrefix {
	return typed.NewResource[AdvertisedPrefixSpec, AdvertisedPrefixExtension](
		resource.NewMetadata(namespace, AdvertisedPrefixType, id, resource.VersionUndefined),
		AdvertisedPrefixSpec{},
	)
}

// AdvertisedPrefixExtension provides auxiliary methods for AdvertisedPrefix.
type AdvertisedPrefixExtension struct{}

// ResourceDefinition implements [typed.Extension] interface.
func (AdvertisedPrefixExtension) ResourceDefinition() meta.ResourceDefinitionSpec {
	return meta.ResourceDefinitionSpec{
		Type:             AdvertisedPrefixType,
		Aliases:          []resource.Type{},
		DefaultNamespace: NamespaceName,
		PrintColumns: []meta.PrintColumn{
			{
				Name:     "Prefix",
				JSONPath: `{.prefix}`,
			},
			{
				Name:     "SLAAC",
				JSONPath: `{.slaac}`,
			},
			{
				Name:     "Preferred",
				JSONPath: `{.preferred}`,
			},
		},
	}
}
