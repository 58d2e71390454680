// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"encoding/json"
	"fmt"

	"gomodules.xyz/jsonpatch/v2"
)

// diff computes the RFC 6902 JSON Patch that transforms source into target.
// Go's deterministic map key ordering during marshaling keeps unrelated
// reserialization noise out of the patch.
func diff(source, target any) ([]jsonpatch.Operation, error) {
	sourceJSON, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("marshaling source object: %w", err)
	}
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("marshaling target object: %w", err)
	}
	ops, err := jsonpatch.CreatePatch(sourceJSON, targetJSON)
	if err != nil {
		return nil, fmt.Errorf("computing patch: %w", err)
	}
	return ops, nil
}
