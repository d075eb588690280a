// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mesh provides the resources which connect the SLAAC engine to the
// rest of the node: advertised prefixes and the engine configuration flow in,
// installed address statuses flow out.
package mesh

import "github.com/cosi-project/runtime/pkg/resource"

// NamespaceName contains resources of the mesh network data subsystem.
const NamespaceName resource.Namespace = "mesh"
