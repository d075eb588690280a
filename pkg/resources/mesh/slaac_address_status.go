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

// SlaacAddressStatusType is type of SlaacAddressStatus resource.
const SlaacAddressStatusType = resource.Type("SlaacAddressStatuses.mesh.slaac.dev")

// SlaacAddressStatus resource holds an address installed by the SLAAC engine.
type SlaacAddressStatus = typed.Resource[SlaacAddressStatusSpec, SlaacAddressStatusExtension]

// SlaacAddressStatusSpec describes an installed SLAAC address.
type SlaacAddressStatusSpec struct {
	Address   netip.Prefix `yaml:"address"`
	Preferred bool         `yaml:"preferred"`
	LinkName  string       `yaml:"linkName"`
}

// DeepCopy generates a deep copy of SlaacAddressStatusSpec.
func (spec SlaacAddressStatusSpec) DeepCopy() SlaacAddressStatusSpec {
	return spec
}

// NewSlaacAddressStatus initializes a SlaacAddressStatus resource.
func NewSlaacAddressStatus(namespace resource.Namespace, id resource.ID) *SlaacAddressStatus {
	return typed.NewResource[SlaacAddressStatusSpec, SlaacAddressStatusExtension](
		resource.NewMetadata(namespace, SlaacAddressStatusType, id, resource.VersionUndefined),
		SlaacAddressStatusSpec{},
	)
}

// SlaacAddressStatusExtension provides auxiliary methods for SlaacAddressStatus.
type SlaacAddressStatusExtension struct{}

// ResourceDefinition implements [typed.Extension] interface.
func (SlaacAddressStatusExtension) ResourceDefinition() meta.ResourceDefinitionSpec {
	return meta.ResourceDefinitionSpec{
		Type:             SlaacAddressStatusType,
		Aliases:          []resource.Type{},
		DefaultNamespace: NamespaceName,
		PrintColumns: []meta.PrintColumn{
			{
				Name:     "Address",
				JSONPath: `{.address}`,
			},
			{
				Name:     "Preferred",
				JSONPath: `{.preferred}`,
			},
			{
				Name:     "Link",
				JSONPath: `{.linkName}`,
			},
		},
	}
}
