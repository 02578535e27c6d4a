package registry

import "path/filepath"

// maxAncestorDepth bounds the upward walk in BuildPath. Music libraries
// are shallow; anything deeper indicates a pathological layout.
const maxAncestorDepth = 32

// BuildPath reconstructs the ordered folder chain from an attached root
// down to the folder at targetDir, using only filesystem parent/child
// relationships between the candidate folder paths. No persisted tree
// pointers are consulted, so a broken or never-before-seen hierarchy can
// be recovered lazily. Returns nil when no attached root is reachable
// within the depth bound.
//
// Cost is O(depth x candidateCount) per call, acceptable because library
// depth is shallow and calls happen on navigation and recovery only.
func BuildPath(targetDir string, candidates []ResolvedFolder) []ResolvedFolder {
	if targetDir == "" || len(candidates) == 0 {
		return nil
	}

	byPath := make(map[string]ResolvedFolder, len(candidates))
	for _, candidate := range candidates {
		if candidate.Path != "" {
			byPath[candidate.Path] = candidate
		}
	}

	var chain []ResolvedFolder
	current := filepath.Clean(targetDir)
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if match, ok := byPath[current]; ok {
			chain = append(chain, match)
			if match.Entry.IsRoot() {
				reverse(chain)
				return chain
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}
		current = parent
	}
	return nil
}

func reverse(chain []ResolvedFolder) {
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
}
