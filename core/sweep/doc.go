// Package sweep removes state whose source disappeared from the asset tree.
//
// After a complete traversal every registry key that was not observed in the
// run is stale. Stale entries are always removed from the registry. Their
// artifacts are deleted only when the Policy table allows it for the
// artifact's class: data exports are deleted, audio only inside the audio
// subtree, textures and meshes never.
//
// Membership and artifact lookup are case-insensitive because the source tree
// is case-insensitive on some platforms.
package sweep
